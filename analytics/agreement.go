package analytics

// disagreementThreshold marks a pair of members as disagreeing when their
// content overlap falls below it.
const disagreementThreshold = 0.7

// MemberResponseRecord is one persisted council-member response: the
// content a member produced for a given request, independent of which
// round produced it. Agreement Matrix and Influence Scores are both
// computed over slices of these spanning many requestIds, the way
// AggregateCosts spans many cost_records rows.
type MemberResponseRecord struct {
	RequestID       string
	CouncilMemberID string
	Content         string
}

// ConsensusRecord is one persisted request's final consensus content.
type ConsensusRecord struct {
	RequestID string
	Content   string
}

// AgreementMatrix computes the cross-request disagreement rate between
// every pair of council members named in memberIDs: for members i and j,
// the fraction of requests where both answered and their answers
// disagreed (overlap below disagreementThreshold), over the count of
// requests where both answered at all. A pair that never co-occurred on
// any request reports 0. memberIDs fixes the row/column order.
func AgreementMatrix(memberIDs []string, responses []MemberResponseRecord) [][]float64 {
	byRequest := make(map[string]map[string]string)
	for _, r := range responses {
		if r.Content == "" {
			continue
		}
		contents, ok := byRequest[r.RequestID]
		if !ok {
			contents = make(map[string]string)
			byRequest[r.RequestID] = contents
		}
		contents[r.CouncilMemberID] = r.Content
	}

	n := len(memberIDs)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			coOccurred, disagreed := 0, 0
			for _, contents := range byRequest {
				ci, okI := contents[memberIDs[i]]
				cj, okJ := contents[memberIDs[j]]
				if !okI || !okJ {
					continue
				}
				coOccurred++
				if overlap(ci, cj) < disagreementThreshold {
					disagreed++
				}
			}
			d := 0.0
			if coOccurred > 0 {
				d = float64(disagreed) / float64(coOccurred)
			}
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// InfluenceScores reports, per member, the fraction of persisted
// (request, member-response, consensus-decision) triples in which that
// member's response matched its request's consensus content (overlap
// over 0.5). A member with no matching consensus record across the
// dataset reports 0.
func InfluenceScores(responses []MemberResponseRecord, consensus []ConsensusRecord) map[string]float64 {
	consensusByRequest := make(map[string]string, len(consensus))
	for _, c := range consensus {
		consensusByRequest[c.RequestID] = c.Content
	}

	counts := make(map[string]int)
	matches := make(map[string]int)
	for _, r := range responses {
		consensusContent, ok := consensusByRequest[r.RequestID]
		if !ok {
			continue
		}
		counts[r.CouncilMemberID]++
		if overlap(r.Content, consensusContent) > 0.5 {
			matches[r.CouncilMemberID]++
		}
	}

	scores := make(map[string]float64, len(counts))
	for id, total := range counts {
		if total == 0 {
			scores[id] = 0
			continue
		}
		scores[id] = float64(matches[id]) / float64(total)
	}
	return scores
}
