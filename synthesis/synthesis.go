// Package synthesis provides default SynthesisEngine implementations: an
// LLM-backed synthesizer that asks a model to reduce a deliberation thread
// to a single decision, and a template-based fallback that concatenates
// the final round's content when no LLM client is configured or the LLM
// call itself fails.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcouncil/council/council"
)

// AISynthesizer asks an AIClient to reduce the deliberation thread to a
// single decision. On failure it falls back to SimpleSynthesizer rather
// than surfacing a SynthesisError for a condition the caller can recover
// from locally.
type AISynthesizer struct {
	Client council.AIClient
	Logger council.Logger
	Model  string

	fallback *SimpleSynthesizer
}

// NewAISynthesizer builds an AISynthesizer. A nil logger falls back to the
// no-op implementation.
func NewAISynthesizer(client council.AIClient, model string, logger council.Logger) *AISynthesizer {
	if logger == nil {
		logger = council.NoOpLogger{}
	}
	return &AISynthesizer{Client: client, Model: model, Logger: logger, fallback: &SimpleSynthesizer{}}
}

// Synthesize builds a prompt summarizing the full deliberation thread and
// asks the configured model for a single consolidated answer. The model's
// text becomes the decision content; confidence is reported as high and the
// agreement level is computed from the thread, not asked of the model. A
// failed call or an empty model response degrades to the template
// synthesizer rather than failing the request.
func (s *AISynthesizer) Synthesize(ctx context.Context, req council.UserRequest, thread council.DeliberationThread, strategy council.SynthesisConfig) (council.ConsensusDecision, error) {
	if s.Client == nil {
		return s.fallback.Synthesize(ctx, req, thread, strategy)
	}

	prompt := buildSynthesisPrompt(req, thread)
	resp, err := s.Client.GenerateResponse(ctx, prompt, &council.AIOptions{Model: s.Model, Temperature: 0.2})
	if err != nil {
		s.Logger.Warn("synthesis model call failed, falling back to template synthesis", map[string]interface{}{
			"error": err.Error(),
		})
		return s.fallback.Synthesize(ctx, req, thread, strategy)
	}

	content := council.CoerceContent(resp.Content)
	if strings.TrimSpace(content) == "" {
		return s.fallback.Synthesize(ctx, req, thread, strategy)
	}

	return council.ConsensusDecision{
		Content:             content,
		Confidence:          council.ConfidenceHigh,
		AgreementLevel:       lastRoundAgreement(thread),
		Strategy:             "llm:" + s.Model,
		ContributingMembers:  lastRoundMemberIDs(thread),
		Timestamp:            req.Timestamp,
	}, nil
}

func buildSynthesisPrompt(req council.UserRequest, thread council.DeliberationThread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", req.Query)
	for _, round := range thread.Rounds {
		fmt.Fprintf(&b, "Round %d:\n", round.RoundNumber)
		for _, ex := range round.Exchanges {
			fmt.Fprintf(&b, "- %s: %s\n", ex.CouncilMemberID, ex.Content)
		}
	}
	b.WriteString("\nProduce a single consolidated answer reflecting the above deliberation.")
	return b.String()
}

// SimpleSynthesizer concatenates the last round's member contents without
// calling a model. It is the default when no AIClient is configured and
// the unconditional fallback for AISynthesizer.
type SimpleSynthesizer struct{}

// Synthesize joins every member's final-round content, in the order of the
// final round's exchanges, into one answer. Confidence reflects how many members actually
// contributed content to the last round versus how many were expected.
func (s *SimpleSynthesizer) Synthesize(ctx context.Context, req council.UserRequest, thread council.DeliberationThread, strategy council.SynthesisConfig) (council.ConsensusDecision, error) {
	if len(thread.Rounds) == 0 {
		return council.ConsensusDecision{}, council.ErrNoResponses
	}
	last := thread.Rounds[len(thread.Rounds)-1]

	var parts []string
	for _, ex := range last.Exchanges {
		if strings.TrimSpace(ex.Content) == "" {
			continue
		}
		parts = append(parts, ex.Content)
	}

	agreement := lastRoundAgreement(thread)
	confidence := council.ConfidenceMedium
	switch {
	case agreement >= 0.8:
		confidence = council.ConfidenceHigh
	case agreement < 0.5:
		confidence = council.ConfidenceLow
	}

	return council.ConsensusDecision{
		Content:             strings.Join(parts, "\n\n"),
		Confidence:          confidence,
		AgreementLevel:       agreement,
		Strategy:             "template:concatenate",
		ContributingMembers:  lastRoundMemberIDs(thread),
		Timestamp:            req.Timestamp,
	}, nil
}

// lastRoundMemberIDs returns the ids of every member with an exchange in
// the thread's final round, whether or not that exchange has content.
func lastRoundMemberIDs(thread council.DeliberationThread) []string {
	if len(thread.Rounds) == 0 {
		return nil
	}
	last := thread.Rounds[len(thread.Rounds)-1]
	ids := make([]string, 0, len(last.Exchanges))
	for _, ex := range last.Exchanges {
		ids = append(ids, ex.CouncilMemberID)
	}
	return ids
}

// lastRoundAgreement estimates agreement as the fraction of the previous
// round's members each member still referenced in its final exchange,
// averaged across members. A thread with no rounds reports 0; a final
// round with a single member has no peers to agree with and is reported as
// full agreement.
func lastRoundAgreement(thread council.DeliberationThread) float64 {
	if len(thread.Rounds) == 0 {
		return 0
	}
	last := thread.Rounds[len(thread.Rounds)-1]
	if len(last.Exchanges) <= 1 {
		return 1.0
	}

	total := 0.0
	for _, ex := range last.Exchanges {
		expectedPeers := len(last.Exchanges) - 1
		if expectedPeers == 0 {
			total += 1.0
			continue
		}
		total += float64(len(ex.ReferencesTo)) / float64(expectedPeers)
	}
	return total / float64(len(last.Exchanges))
}
