// Package providerpool implements the Provider Pool: the thin dispatcher
// between a council member and its upstream adapter. It refuses disabled
// or unconfigured providers up front, and reports every outcome to the
// Health Tracker exactly once regardless of which branch produced it.
package providerpool

import (
	"context"
	"time"

	"github.com/modelcouncil/council/council"
	"github.com/modelcouncil/council/health"
	"github.com/modelcouncil/council/resilience"
)

// Pool implements council.ProviderPool. It owns no adapters of its own —
// callers register them with Register — and holds no state beyond the
// registry and a reference to the shared Health Tracker.
type Pool struct {
	tracker *health.Tracker
	logger  council.Logger

	adapters map[string]council.AIClient
}

// New builds a Pool backed by tracker. A nil logger falls back to the
// no-op implementation.
func New(tracker *health.Tracker, logger council.Logger) *Pool {
	if logger == nil {
		logger = council.NoOpLogger{}
	}
	return &Pool{
		tracker:  tracker,
		logger:   logger,
		adapters: make(map[string]council.AIClient),
	}
}

// Register binds a providerID to its upstream adapter. Call once per
// provider during startup wiring.
func (p *Pool) Register(providerID string, adapter council.AIClient) {
	p.adapters[providerID] = adapter
	p.tracker.Initialize(providerID)
}

// SendRequest dispatches one member's prompt to its provider's adapter.
// It refuses disabled providers with ErrProviderDisabled and unconfigured
// ones with ErrAdapterNotConfigured before ever calling the adapter, and
// reports every other outcome — success or failure — to the Health
// Tracker exactly once.
func (p *Pool) SendRequest(ctx context.Context, member council.CouncilMember, prompt string, convCtx *council.ConversationContext) council.ProviderResponse {
	if p.tracker.IsDisabled(member.ProviderID) {
		return council.ProviderResponse{
			Success: false,
			Err: &council.AdapterError{
				Kind:      council.KindProviderDisabled,
				Message:   "provider " + member.ProviderID + " is disabled: " + p.tracker.GetDisabledReason(member.ProviderID),
				Retryable: false,
			},
		}
	}

	adapter, ok := p.adapters[member.ProviderID]
	if !ok {
		return council.ProviderResponse{
			Success: false,
			Err: &council.AdapterError{
				Kind:      council.KindAdapterNotConfigured,
				Message:   "no adapter registered for provider " + member.ProviderID,
				Retryable: false,
			},
		}
	}

	opts := &council.AIOptions{Model: member.Model}
	start := time.Now()
	resp, kind, err := p.callWithRetry(ctx, adapter, member, prompt, opts)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		p.tracker.RecordFailure(member.ProviderID, string(kind))
		p.logger.Warn("provider request failed", map[string]interface{}{
			"provider_id": member.ProviderID,
			"member_id":   member.MemberID,
			"kind":        string(kind),
			"error":       err.Error(),
		})
		return council.ProviderResponse{
			Success:   false,
			LatencyMs: latencyMs,
			Err: &council.AdapterError{
				Kind:      kind,
				Message:   err.Error(),
				Retryable: kind == council.KindRateLimit || kind == council.KindTransportError,
			},
		}
	}

	p.tracker.RecordSuccess(member.ProviderID, latencyMs)

	return council.ProviderResponse{
		Success:   true,
		Content:   council.CoerceContent(resp.Content),
		Usage:     resp.Usage,
		LatencyMs: latencyMs,
	}
}

// callWithRetry invokes the adapter, retrying internally against the
// member's own retry policy when the failure's kind is in its retryable
// set. Retries are this layer's concern only — per spec.md §6 they are
// invisible to the orchestration core, which sees one ProviderResponse. A
// failure outside the retryable set stops after its first attempt: it is
// reported to resilience.Retry as settled (not retried) so no backoff
// delay is spent on a kind the member never asked to retry.
func (p *Pool) callWithRetry(ctx context.Context, adapter council.AIClient, member council.CouncilMember, prompt string, opts *council.AIOptions) (*council.AIResponse, council.ErrorKind, error) {
	var resp *council.AIResponse
	var lastErr error
	var lastKind council.ErrorKind
	settled := false

	cfg := &resilience.RetryConfig{
		MaxAttempts:   maxInt(member.Retry.MaxAttempts, 1),
		InitialDelay:  member.Retry.InitialDelay,
		MaxDelay:      member.Retry.MaxDelay,
		BackoffFactor: member.Retry.BackoffMultiplier,
		JitterEnabled: true,
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1
	}

	_ = resilience.Retry(ctx, cfg, func() error {
		if settled {
			return nil
		}
		r, callErr := adapter.GenerateResponse(ctx, prompt, opts)
		if callErr != nil {
			lastErr = callErr
			lastKind = classifyError(ctx, callErr)
			if !isRetryableKind(lastKind, member.Retry.RetryableKinds) {
				settled = true
				return nil
			}
			return callErr
		}
		resp = r
		settled = true
		return nil
	})

	if resp != nil {
		return resp, "", nil
	}
	return nil, lastKind, lastErr
}

func isRetryableKind(kind council.ErrorKind, retryable []council.ErrorKind) bool {
	for _, k := range retryable {
		if k == kind {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// classifyError maps an adapter error to the spec's ErrorKind taxonomy.
// An *council.AdapterError is trusted verbatim; anything else is
// classified from context cancellation/deadline, falling back to
// TransportError.
func classifyError(ctx context.Context, err error) council.ErrorKind {
	if ae, ok := err.(*council.AdapterError); ok {
		return ae.Kind
	}
	if ctx.Err() == context.DeadlineExceeded {
		return council.KindMemberTimeout
	}
	return council.KindTransportError
}

// GetProviderHealth returns the tracked health view for providerID. The
// bool return is false only for providers the pool has never registered.
func (p *Pool) GetProviderHealth(providerID string) (council.ProviderHealth, bool) {
	if _, ok := p.adapters[providerID]; !ok {
		return council.ProviderHealth{}, false
	}
	return p.tracker.View(providerID), true
}

// MarkProviderDisabled forces providerID into the disabled state. Calling
// it on an already-disabled provider is a no-op beyond refreshing the
// reason.
func (p *Pool) MarkProviderDisabled(providerID string, reason string) {
	p.tracker.MarkDisabled(providerID, reason)
}
