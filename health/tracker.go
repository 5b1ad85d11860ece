// Package health implements the Provider Health Tracker: a process-wide,
// per-provider rolling window of success/failure records used to compute a
// three-state health verdict (healthy/degraded/disabled) and to gate the
// Provider Pool's dispatch decisions.
//
// The tracker is a singleton with a DI-friendly constructor, mirroring the
// framework's circuit breaker (see resilience.CircuitBreaker): state lives
// behind a mutex held per-provider entry, never globally, so unrelated
// providers never contend.
package health

import (
	"sync"
	"time"

	"github.com/modelcouncil/council/council"
)

const (
	// DefaultWindow is the rolling window over which success rate and
	// request counts are computed.
	DefaultWindow = 15 * time.Minute

	// DefaultFailureThreshold is the number of consecutive failures (T)
	// that disables a provider.
	DefaultFailureThreshold = 5

	// maxLatencySamples bounds the FIFO latency sample buffer.
	maxLatencySamples = 100

	// degradedBelowRate marks a provider degraded when its rolling
	// success rate falls below this threshold (and it isn't disabled).
	degradedBelowRate = 0.8
)

// record is one outcome observation, timestamped for window pruning.
type record struct {
	at      time.Time
	success bool
}

// providerState is the tracker's internal per-provider entry. All access is
// serialized by mu; the tracker never holds a second provider's lock while
// holding this one.
type providerState struct {
	mu sync.Mutex

	records []record // append-then-prune order; oldest first

	consecutiveFailures int
	disabled            bool
	disabledReason      string

	latencies    []float64 // FIFO, last maxLatencySamples
	lastFailure  *time.Time
}

// Config controls the window size and failure threshold. Zero values fall
// back to the package defaults.
type Config struct {
	Window           time.Duration
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	return c
}

// Tracker is the Health Tracker singleton. Construct one with NewTracker
// and share it between the Provider Pool and the orchestration core.
type Tracker struct {
	cfg Config

	mu        sync.RWMutex // guards the providers map itself, not its entries
	providers map[string]*providerState

	logger    council.Logger
	telemetry council.Telemetry
}

// NewTracker builds a Health Tracker. A nil logger/telemetry falls back to
// the no-op implementations so callers never have to guard against a nil
// dependency.
func NewTracker(cfg Config, logger council.Logger, tel council.Telemetry) *Tracker {
	if logger == nil {
		logger = council.NoOpLogger{}
	}
	if tel == nil {
		tel = council.NoOpTelemetry{}
	}
	return &Tracker{
		cfg:       cfg.withDefaults(),
		providers: make(map[string]*providerState),
		logger:    logger,
		telemetry: tel,
	}
}

// entry returns (creating if absent) the state for providerID. Creation is
// itself serialized by the map lock, but nothing about a provider's
// bookkeeping is held across the map lock and the entry lock at once.
func (t *Tracker) entry(providerID string) *providerState {
	t.mu.RLock()
	st, ok := t.providers[providerID]
	t.mu.RUnlock()
	if ok {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.providers[providerID]; ok {
		return st
	}
	st = &providerState{}
	t.providers[providerID] = st
	return st
}

// Initialize registers providerID with a clean slate. Safe to call more
// than once; later calls are no-ops if the provider is already tracked.
func (t *Tracker) Initialize(providerID string) {
	t.entry(providerID)
}

// RecordSuccess appends a success record, then prunes the window. The
// order is the invariant: the new record must be counted in the pruned
// window's totals, so every subsequent read (success rate, request count)
// reflects it immediately.
func (t *Tracker) RecordSuccess(providerID string, latencyMs float64) {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.records = append(st.records, record{at: now, success: true})
	t.prune(st, now)

	st.consecutiveFailures = 0
	st.latencies = appendBounded(st.latencies, latencyMs, maxLatencySamples)

	t.logger.Debug("provider success recorded", map[string]interface{}{
		"provider_id": providerID,
		"latency_ms":  latencyMs,
	})
}

// RecordFailure appends a failure record, then prunes the window, then
// updates the consecutive-failure counter and disables the provider if the
// threshold is reached. Append-then-prune applies here too.
func (t *Tracker) RecordFailure(providerID string, reason string) {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.records = append(st.records, record{at: now, success: false})
	t.prune(st, now)

	st.consecutiveFailures++
	st.lastFailure = &now

	wasDisabled := st.disabled
	if st.consecutiveFailures >= t.cfg.FailureThreshold {
		st.disabled = true
		if st.disabledReason == "" {
			st.disabledReason = reason
		}
	}

	if !wasDisabled && st.disabled {
		t.logger.Warn("provider disabled after consecutive failures", map[string]interface{}{
			"provider_id":          providerID,
			"consecutive_failures": st.consecutiveFailures,
			"reason":               st.disabledReason,
		})
		t.telemetry.RecordMetric("provider_disabled", 1, map[string]string{"provider_id": providerID})
	}

	t.logger.Debug("provider failure recorded", map[string]interface{}{
		"provider_id": providerID,
		"reason":      reason,
	})
}

// prune drops records older than the rolling window. Caller must hold
// st.mu.
func (t *Tracker) prune(st *providerState, now time.Time) {
	cutoff := now.Add(-t.cfg.Window)
	i := 0
	for i < len(st.records) && st.records[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		st.records = st.records[i:]
	}
}

func appendBounded(buf []float64, v float64, max int) []float64 {
	buf = append(buf, v)
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}

// IsDisabled reports whether providerID is currently disabled.
func (t *Tracker) IsDisabled(providerID string) bool {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.disabled
}

// GetFailureCount returns the current consecutive-failure count.
func (t *Tracker) GetFailureCount(providerID string) int {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.consecutiveFailures
}

// GetDisabledReason returns the reason a disabled provider was disabled,
// or "" if it is not disabled.
func (t *Tracker) GetDisabledReason(providerID string) string {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.disabled {
		return ""
	}
	return st.disabledReason
}

// GetSuccessRate returns the rolling-window success rate. Per spec, a
// provider with no requests in the window reports 0, not 1 — an empty
// window carries no evidence of health.
func (t *Tracker) GetSuccessRate(providerID string) float64 {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	t.prune(st, time.Now())

	if len(st.records) == 0 {
		return 0
	}
	successes := 0
	for _, r := range st.records {
		if r.success {
			successes++
		}
	}
	return float64(successes) / float64(len(st.records))
}

// GetHealthStatus computes the three-state verdict: disabled if the
// consecutive-failure counter has tripped, degraded if the rolling success
// rate is below the degraded threshold, healthy otherwise.
func (t *Tracker) GetHealthStatus(providerID string) council.HealthStatus {
	st := t.entry(providerID)
	st.mu.Lock()
	disabled := st.disabled
	st.mu.Unlock()

	if disabled {
		return council.HealthDisabled
	}
	if t.GetSuccessRate(providerID) < degradedBelowRate {
		return council.HealthDegraded
	}
	return council.HealthHealthy
}

// GetLastFailure returns the timestamp of the most recent recorded
// failure, or nil if none has been recorded.
func (t *Tracker) GetLastFailure(providerID string) *time.Time {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastFailure
}

// GetTrackedProviders returns the ids of every provider the tracker has
// seen, in no particular order.
func (t *Tracker) GetTrackedProviders() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.providers))
	for id := range t.providers {
		out = append(out, id)
	}
	return out
}

// MarkDisabled forces a provider into the disabled state immediately, by
// setting its consecutive-failure counter to the threshold. Used by
// operators and by the Provider Pool's explicit disable path.
func (t *Tracker) MarkDisabled(providerID string, reason string) {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.consecutiveFailures = t.cfg.FailureThreshold
	st.disabled = true
	st.disabledReason = reason
}

// EnableProvider clears the disabled state and resets the consecutive
// failure counter, giving a provider a clean slate.
func (t *Tracker) EnableProvider(providerID string) {
	t.ResetFailureCount(providerID)
}

// ResetFailureCount clears the consecutive-failure counter and any
// disabled state, without touching the rolling window's historical
// records.
func (t *Tracker) ResetFailureCount(providerID string) {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.consecutiveFailures = 0
	st.disabled = false
	st.disabledReason = ""
}

// AverageLatencyMs returns the mean of the last (at most) 100 latency
// samples, or 0 if none have been recorded.
func (t *Tracker) AverageLatencyMs(providerID string) float64 {
	st := t.entry(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.latencies) == 0 {
		return 0
	}
	var sum float64
	for _, v := range st.latencies {
		sum += v
	}
	return sum / float64(len(st.latencies))
}

// View returns the public ProviderHealth snapshot for a provider.
func (t *Tracker) View(providerID string) council.ProviderHealth {
	return council.ProviderHealth{
		ProviderID:     providerID,
		Status:         t.GetHealthStatus(providerID),
		SuccessRate:    t.GetSuccessRate(providerID),
		AvgLatencyMs:   t.AverageLatencyMs(providerID),
		LastFailureAt:  t.GetLastFailure(providerID),
		DisabledReason: t.GetDisabledReason(providerID),
	}
}
