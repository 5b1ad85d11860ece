package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/modelcouncil/council/council"
)

func TestPercentileLinearInterpolation(t *testing.T) {
	samples := []float64{10, 20, 30, 40, 50}
	if p := Percentile(samples, 0.5); p != 30 {
		t.Fatalf("expected median 30, got %v", p)
	}
	if p := Percentile(samples, 1.0); p != 50 {
		t.Fatalf("expected p100 50, got %v", p)
	}
	if p := Percentile(nil, 0.5); p != 0 {
		t.Fatalf("expected 0 for empty samples, got %v", p)
	}
}

func TestOverlapBothEmptyAndOneEmpty(t *testing.T) {
	if ov := overlap("", ""); ov != 1.0 {
		t.Fatalf("expected both-empty-identical overlap 1.0, got %v", ov)
	}
	if ov := overlap("some content here", ""); ov != 0.0 {
		t.Fatalf("expected one-empty overlap 0.0, got %v", ov)
	}
	if math.IsNaN(overlap("", "")) {
		t.Fatalf("overlap must never return NaN")
	}
}

// TestOverlapBothEmptyButDifferentStringsIsZero covers the both-empty
// tie-break: a pair of strings that tokenize to nothing (every token is
// <= 3 chars) must not be reported as fully overlapping unless the raw
// trimmed strings are themselves identical.
func TestOverlapBothEmptyButDifferentStringsIsZero(t *testing.T) {
	if ov := overlap("abc", "xyz"); ov != 0.0 {
		t.Fatalf("expected both-empty-but-different overlap 0.0, got %v", ov)
	}
	if ov := overlap("abc", "abc"); ov != 1.0 {
		t.Fatalf("expected both-empty-and-identical overlap 1.0, got %v", ov)
	}
	if ov := overlap(" abc ", "abc"); ov != 1.0 {
		t.Fatalf("expected trimmed comparison to ignore surrounding whitespace, got %v", ov)
	}
}

func TestOverlapDropsShortTokens(t *testing.T) {
	// "is" and "a" are <= 3 chars and should not contribute to the set.
	ov := overlap("this is a test", "this is a test")
	if ov != 1.0 {
		t.Fatalf("expected identical strings to fully overlap, got %v", ov)
	}
}

// TestOverlapCoefficientDivergesFromJaccard exercises a pair of equal-size,
// partially-overlapping token sets where the overlap coefficient
// (intersection / max set size) and Jaccard index (intersection / union)
// disagree: {alpha,bravo,charlie} vs {alpha,bravo,delta} share 2 of 3
// tokens each, for a coefficient of 2/3 but a Jaccard index of 2/4.
func TestOverlapCoefficientDivergesFromJaccard(t *testing.T) {
	ov := overlap("alpha bravo charlie", "alpha bravo delta")
	want := 2.0 / 3.0
	if math.Abs(ov-want) > 1e-9 {
		t.Fatalf("expected overlap coefficient %v, got %v (Jaccard would give %v)", want, ov, 2.0/4.0)
	}
}

func TestAgreementMatrixSymmetricAndZeroDiagonal(t *testing.T) {
	responses := []MemberResponseRecord{
		{RequestID: "r1", CouncilMemberID: "m1", Content: "the quick brown fox jumps"},
		{RequestID: "r1", CouncilMemberID: "m2", Content: "completely different words here entirely"},
	}
	m := AgreementMatrix([]string{"m1", "m2"}, responses)

	if m[0][0] != 0 || m[1][1] != 0 {
		t.Fatalf("expected zero diagonal, got %v", m)
	}
	if m[0][1] != m[1][0] {
		t.Fatalf("expected symmetric matrix, got %v vs %v", m[0][1], m[1][0])
	}
}

func TestAgreementMatrixSkipsEmptyContent(t *testing.T) {
	responses := []MemberResponseRecord{
		{RequestID: "r1", CouncilMemberID: "m1", Content: ""},
		{RequestID: "r1", CouncilMemberID: "m2", Content: "some real content words"},
	}
	m := AgreementMatrix([]string{"m1", "m2"}, responses)
	if m[0][1] != 0 || m[1][0] != 0 {
		t.Fatalf("expected skipped pair for empty content, got %v", m)
	}
}

// TestAgreementMatrixAggregatesAcrossRequests verifies the disagreement
// rate is computed over every request where both members answered, not a
// single round: m1/m2 disagree on r1 but agree on r2, for a 1/2 rate.
func TestAgreementMatrixAggregatesAcrossRequests(t *testing.T) {
	responses := []MemberResponseRecord{
		{RequestID: "r1", CouncilMemberID: "m1", Content: "the quick brown fox jumps"},
		{RequestID: "r1", CouncilMemberID: "m2", Content: "completely different words here entirely"},
		{RequestID: "r2", CouncilMemberID: "m1", Content: "the quick brown fox jumps today"},
		{RequestID: "r2", CouncilMemberID: "m2", Content: "the quick brown fox jumps today"},
	}
	m := AgreementMatrix([]string{"m1", "m2"}, responses)
	if m[0][1] != 0.5 {
		t.Fatalf("expected 1/2 disagreement rate across requests, got %v", m[0][1])
	}
}

// TestInfluenceScoresAggregatesAcrossRequests verifies influence is
// computed over every persisted (request, response, consensus) triple,
// not a single thread.
func TestInfluenceScoresAggregatesAcrossRequests(t *testing.T) {
	responses := []MemberResponseRecord{
		{RequestID: "r1", CouncilMemberID: "m1", Content: "the final answer is forty two"},
		{RequestID: "r2", CouncilMemberID: "m1", Content: "totally unrelated content words"},
	}
	consensus := []ConsensusRecord{
		{RequestID: "r1", Content: "the final answer is forty two"},
		{RequestID: "r2", Content: "the final answer is forty two"},
	}
	scores := InfluenceScores(responses, consensus)
	if scores["m1"] != 0.5 {
		t.Fatalf("expected influence 0.5 (1 of 2 requests matched), got %v", scores["m1"])
	}
}

func TestAggregateCostsSkipsNaNAndNegative(t *testing.T) {
	records := []council.CostRecord{
		{ProviderID: "openai", Model: "gpt-4", Cost: 0.02},
		{ProviderID: "openai", Model: "gpt-4", Cost: math.NaN()},
		{ProviderID: "openai", Model: "gpt-4", Cost: -1},
		{ProviderID: "openai", Model: "gpt-4", Cost: 0.03},
	}
	aggs := AggregateCosts(records, 1)
	if len(aggs) != 1 {
		t.Fatalf("expected one aggregate group, got %d", len(aggs))
	}
	if aggs[0].RequestCount != 2 {
		t.Fatalf("expected 2 valid records counted, got %d", aggs[0].RequestCount)
	}
	if aggs[0].TotalCost != 0.05 {
		t.Fatalf("expected total cost 0.05, got %v", aggs[0].TotalCost)
	}
}

// TestPairCostWithQualityDropsNaNAndOrdersDescending verifies the literal
// per-request (total_cost, agreement_level) pairing: each record keeps its
// own cost and agreement level (no provider/model join), NaN records are
// dropped, and the result is ordered most-recent-first.
func TestPairCostWithQualityDropsNaNAndOrdersDescending(t *testing.T) {
	base := time.Now()
	records := []RequestQualityRecord{
		{RequestID: "r1", TotalCost: 0.10, AgreementLevel: 0.9, CreatedAt: base.Add(-2 * time.Hour)},
		{RequestID: "r2", TotalCost: math.NaN(), AgreementLevel: 0.5, CreatedAt: base.Add(-1 * time.Hour)},
		{RequestID: "r3", TotalCost: 0.20, AgreementLevel: 0.7, CreatedAt: base},
	}

	paired := PairCostWithQuality(records)
	if len(paired) != 2 {
		t.Fatalf("expected 2 records after dropping NaN, got %d", len(paired))
	}
	if paired[0].RequestID != "r3" || paired[1].RequestID != "r1" {
		t.Fatalf("expected descending temporal order [r3 r1], got [%s %s]", paired[0].RequestID, paired[1].RequestID)
	}
	if paired[1].TotalCost != 0.10 || paired[1].AgreementLevel != 0.9 {
		t.Fatalf("expected r1's own cost/agreement preserved, got %+v", paired[1])
	}
}

func TestCacheSetGetAndMiss(t *testing.T) {
	c := NewCache(0)
	defer c.Close()

	c.Set("k1", 42)
	v, ok := c.Get("k1")
	if !ok || v.(int) != 42 {
		t.Fatalf("expected cached value 42, got %v (ok=%v)", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for unset key")
	}
}

func TestKeyIsStableAndDistinctForDifferentInputs(t *testing.T) {
	k1 := Key("a", "b")
	k2 := Key("a", "b")
	k3 := Key("a", "c")
	if k1 != k2 {
		t.Fatalf("expected identical inputs to hash identically")
	}
	if k1 == k3 {
		t.Fatalf("expected different inputs to hash differently")
	}
}
