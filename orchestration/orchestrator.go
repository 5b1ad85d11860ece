// Package orchestration implements the Orchestration Core: the single
// entrypoint that turns a UserRequest into a ConsensusDecision by fanning a
// prompt out across a council of members, running zero or more
// deliberation rounds of peer review, and handing the resulting thread to
// a Synthesis collaborator.
package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelcouncil/council/council"
)

// Orchestrator wires a ConfigProvider, a ProviderPool, and a
// SynthesisEngine into the processRequest operation. It holds no
// per-request state between calls — every field here is a shared,
// concurrency-safe collaborator.
type Orchestrator struct {
	Config    council.ConfigProvider
	Pool      council.ProviderPool
	Synthesis council.SynthesisEngine
	Logger    council.Logger
	Telemetry council.Telemetry
}

// New builds an Orchestrator. A nil Logger/Telemetry falls back to the
// no-op implementations.
func New(cfg council.ConfigProvider, pool council.ProviderPool, synth council.SynthesisEngine, logger council.Logger, tel council.Telemetry) *Orchestrator {
	if logger == nil {
		logger = council.NoOpLogger{}
	}
	if tel == nil {
		tel = council.NoOpTelemetry{}
	}
	return &Orchestrator{Config: cfg, Pool: pool, Synthesis: synth, Logger: logger, Telemetry: tel}
}

// ProcessRequest is the Orchestration Core's single operation. Its
// collaborators are re-read at the start of every call, so config changes
// take effect on the next request without a restart.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req council.UserRequest) (council.ConsensusDecision, error) {
	ctx, span := o.Telemetry.StartSpan(ctx, "orchestration.process_request")
	defer span.End()
	start := time.Now()

	councilCfg, err := o.Config.GetCouncilConfig(ctx)
	if err != nil {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindConfigurationError, err)
	}
	delibCfg, err := o.Config.GetDeliberationConfig(ctx)
	if err != nil {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindConfigurationError, err)
	}
	perfCfg, err := o.Config.GetPerformanceConfig(ctx)
	if err != nil {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindConfigurationError, err)
	}
	synthCfg, err := o.Config.GetSynthesisConfig(ctx)
	if err != nil {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindConfigurationError, err)
	}

	if err := validateConfig(councilCfg, perfCfg); err != nil {
		return council.ConsensusDecision{}, err
	}

	active := activeMembers(councilCfg, o.Pool)
	if councilCfg.RequireMinimumForConsensus && len(active) < councilCfg.MinimumSize {
		return council.ConsensusDecision{}, council.NewFrameworkError(
			"process_request", council.KindInsufficientQuorum,
			fmt.Errorf("%d active members below minimum %d", len(active), councilCfg.MinimumSize),
		)
	}

	round0, hitGlobalTimeout := o.fanOutRound0(ctx, active, req, perfCfg)
	if len(round0.Exchanges) == 0 {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindNoResponses, council.ErrNoResponses)
	}

	thread := council.DeliberationThread{Rounds: []council.DeliberationRound{round0}}

	prev := round0
	for r := 1; r <= delibCfg.Rounds; r++ {
		round := o.runDeliberationRound(ctx, active, req, prev, r)
		thread.Rounds = append(thread.Rounds, round)
		prev = round
	}
	thread.TotalDurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	decision, err := o.Synthesis.Synthesize(ctx, req, thread, synthCfg)
	if err != nil {
		return council.ConsensusDecision{}, council.NewFrameworkError("process_request", council.KindSynthesisError, err)
	}

	if hitGlobalTimeout {
		// Any decision built from a round-0 result frozen mid-flight by the
		// global deadline reflects an incomplete fan-out; never report it
		// with a confidence the synthesizer didn't actually have grounds for.
		decision.Confidence = council.ConfidenceLow
	}

	return decision, nil
}

// validateConfig rejects non-positive timeouts before any adapter is ever
// called.
func validateConfig(councilCfg council.CouncilConfig, perfCfg council.PerformanceConfig) error {
	if perfCfg.GlobalTimeoutSeconds <= 0 {
		return council.NewFrameworkError("process_request", council.KindConfigurationError,
			fmt.Errorf("global timeout must be positive, got %v", perfCfg.GlobalTimeoutSeconds))
	}
	for _, m := range councilCfg.Members {
		if m.TimeoutSeconds <= 0 {
			return council.NewFrameworkError("process_request", council.KindConfigurationError,
				fmt.Errorf("member %q timeout must be positive, got %v", m.MemberID, m.TimeoutSeconds))
		}
	}
	return nil
}

// activeMembers filters the roster down to members whose provider is not
// currently disabled. A provider the pool has never seen is treated as
// active — it fails (AdapterNotConfigured) at dispatch time, not at the
// quorum check.
func activeMembers(cfg council.CouncilConfig, pool council.ProviderPool) []council.CouncilMember {
	active := make([]council.CouncilMember, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		if health, ok := pool.GetProviderHealth(m.ProviderID); ok && health.Status == council.HealthDisabled {
			continue
		}
		active = append(active, m)
	}
	return active
}

// fanOutRound0 races per-member timeouts against a global deadline. Each
// member call is bounded by its own context; the round as a whole is
// bounded by the global deadline, but settlement of every in-flight
// member task is always awaited deterministically — never by a fixed
// sleep — before the partial response list is frozen.
func (o *Orchestrator) fanOutRound0(ctx context.Context, members []council.CouncilMember, req council.UserRequest, perfCfg council.PerformanceConfig) (council.DeliberationRound, bool) {
	type outcome struct {
		memberID string
		resp     council.ProviderResponse
	}

	results := make(chan outcome, len(members))
	var wg sync.WaitGroup

	for _, m := range members {
		wg.Add(1)
		go func(m council.CouncilMember) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- outcome{memberID: m.MemberID, resp: council.ProviderResponse{
						Success: false,
						Err:     &council.AdapterError{Kind: council.KindTransportError, Message: fmt.Sprintf("panic: %v", r)},
					}}
				}
			}()

			memberCtx, cancel := context.WithTimeout(ctx, secondsToDuration(m.TimeoutSeconds))
			defer cancel()

			resp := o.Pool.SendRequest(memberCtx, m, req.Query, req.Context)
			results <- outcome{memberID: m.MemberID, resp: resp}
		}(m)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	globalTimer := time.NewTimer(secondsToDuration(perfCfg.GlobalTimeoutSeconds))
	defer globalTimer.Stop()

	var exchanges []council.Exchange
	received := 0
	hitGlobal := false

collect:
	for received < len(members) {
		select {
		case out, ok := <-results:
			if !ok {
				break collect
			}
			received++
			if out.resp.Success {
				exchanges = append(exchanges, council.Exchange{
					CouncilMemberID: out.memberID,
					Content:         out.resp.Content,
					Usage:           out.resp.Usage,
				})
			}
		case <-globalTimer.C:
			hitGlobal = true
			break collect
		}
	}

	if hitGlobal {
		// Deterministically drain the remaining per-member tasks. Each one
		// is already bounded by its own timeout context, so this loop is
		// bounded by the slowest member timeout, never unbounded. Results
		// arriving after the global deadline are discarded: the partial
		// list was frozen when the deadline fired.
		for received < len(members) {
			if _, ok := <-results; !ok {
				break
			}
			received++
		}
		o.Logger.Warn("round 0 global deadline fired; froze partial responses", map[string]interface{}{
			"members_total":     len(members),
			"members_responded": len(exchanges),
		})
	}

	return council.DeliberationRound{RoundNumber: 0, Exchanges: exchanges}, hitGlobal
}

// runDeliberationRound re-prompts every member that answered in the
// previous round with its peers' content, concurrently and best-effort:
// a member that fails this round keeps its previous round's content
// rather than dropping out of the thread.
func (o *Orchestrator) runDeliberationRound(ctx context.Context, allMembers []council.CouncilMember, req council.UserRequest, prev council.DeliberationRound, roundNumber int) council.DeliberationRound {
	byID := make(map[string]council.CouncilMember, len(allMembers))
	for _, m := range allMembers {
		byID[m.MemberID] = m
	}

	var wg sync.WaitGroup
	exchanges := make([]council.Exchange, len(prev.Exchanges))

	for i, prevExchange := range prev.Exchanges {
		m, ok := byID[prevExchange.CouncilMemberID]
		if !ok {
			// Member dropped from the roster between rounds; carry its last
			// known content forward unchanged.
			exchanges[i] = prevExchange
			continue
		}

		refs := peerIDs(prev.Exchanges, prevExchange.CouncilMemberID)
		prompt := buildPeerPrompt(req.Query, prev.Exchanges, prevExchange.CouncilMemberID)

		wg.Add(1)
		go func(idx int, m council.CouncilMember, prevExchange council.Exchange, refs []string, prompt string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					exchanges[idx] = council.Exchange{
						CouncilMemberID: m.MemberID,
						Content:         prevExchange.Content,
						ReferencesTo:    refs,
						Usage:           prevExchange.Usage,
					}
				}
			}()

			memberCtx, cancel := context.WithTimeout(ctx, secondsToDuration(m.TimeoutSeconds))
			defer cancel()

			resp := o.Pool.SendRequest(memberCtx, m, prompt, req.Context)
			if resp.Success {
				exchanges[idx] = council.Exchange{
					CouncilMemberID: m.MemberID,
					Content:         resp.Content,
					ReferencesTo:    refs,
					Usage:           resp.Usage,
				}
				return
			}
			exchanges[idx] = council.Exchange{
				CouncilMemberID: m.MemberID,
				Content:         prevExchange.Content,
				ReferencesTo:    refs,
				Usage:           prevExchange.Usage,
			}
		}(i, m, prevExchange, refs, prompt)
	}

	wg.Wait()
	return council.DeliberationRound{RoundNumber: roundNumber, Exchanges: exchanges}
}

// peerIDs returns every member id in round except self, preserving order.
func peerIDs(exchanges []council.Exchange, self string) []string {
	refs := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		if e.CouncilMemberID != self {
			refs = append(refs, e.CouncilMemberID)
		}
	}
	return refs
}

// buildPeerPrompt renders the original query plus every peer's previous
// round content, for the adapter to review.
func buildPeerPrompt(query string, exchanges []council.Exchange, self string) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\nPeer responses from the previous round:\n")
	for _, e := range exchanges {
		if e.CouncilMemberID == self {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.CouncilMemberID, e.Content)
	}
	return b.String()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
