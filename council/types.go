// Package council defines the data model and collaborator contracts shared
// across the deliberation proxy: the council roster, per-request records,
// and the external interfaces the orchestration core depends on.
package council

import "time"

// RetryPolicy governs how an adapter may retry a single member's call
// against the retryable-error set. The core never retries itself; adapters
// may implement this against it, invisibly to the orchestrator.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	RetryableKinds    []ErrorKind
}

// CouncilMember is one (provider, model) pairing with its own deadline and
// retry policy. Immutable for the lifetime of a request.
type CouncilMember struct {
	MemberID       string
	ProviderID     string
	Model          string
	Version        string
	Weight         float64
	TimeoutSeconds float64
	Retry          RetryPolicy
}

// CouncilConfig is the ordered roster for a request. Invariant: MinimumSize
// <= len(Members); member IDs unique.
type CouncilConfig struct {
	Members                    []CouncilMember
	MinimumSize                int
	RequireMinimumForConsensus bool
}

// DeliberationPreset names canned round counts.
type DeliberationPreset string

const (
	PresetFast         DeliberationPreset = "fast"
	PresetBalanced     DeliberationPreset = "balanced"
	PresetThorough     DeliberationPreset = "thorough"
	PresetResearchGrade DeliberationPreset = "research-grade"
)

// DeliberationConfig controls how many peer-review rounds run after round 0.
type DeliberationConfig struct {
	Rounds int
	Preset DeliberationPreset
}

// PerformanceConfig controls the two-level deadline structure. Streaming
// and fast-fallback flags are transparent to the orchestration core; they
// are carried through for the adapters' benefit.
type PerformanceConfig struct {
	GlobalTimeoutSeconds float64
	FastFallback         bool
	Streaming            bool
}

// SynthesisConfig is an opaque strategy descriptor passed through to the
// Synthesis collaborator untouched.
type SynthesisConfig struct {
	Strategy string
	Options  map[string]interface{}
}

// ConversationMessage is one turn of prior conversation supplied with a
// request.
type ConversationMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ConversationContext is the optional prior-turn history attached to a
// UserRequest. It is passed to every round-0 adapter call unchanged
// (property P9).
type ConversationContext struct {
	Messages    []ConversationMessage
	TotalTokens int
	Summarized  bool
}

// UserRequest is one inbound query to the council.
type UserRequest struct {
	RequestID string
	Query     string
	SessionID string
	Context   *ConversationContext
	Timestamp time.Time
}

// TokenUsage mirrors the adapter's reported token accounting.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AdapterError is the structured error an adapter reports on failure. Kind
// is one of the taxonomy in errors.go; Retryable flags whether an
// adapter-local retry policy may attempt it again.
type AdapterError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *AdapterError) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// ProviderResponse is what an adapter returns to the Provider Pool. Content
// must be coerced to a string (via CoerceContent) before it reaches this
// struct.
type ProviderResponse struct {
	Success   bool
	Content   string
	Usage     TokenUsage
	LatencyMs float64
	Err       *AdapterError
}

// InitialResponse is what the Provider Pool hands back to the orchestrator.
// It carries the member identity, not just the provider.
type InitialResponse struct {
	CouncilMemberID string
	Content         string
	Usage           TokenUsage
	LatencyMs       float64
	Timestamp       time.Time
}

// TrackedResponse binds a member id to its raw ProviderResponse so partial
// results recovered after a global timeout keep their real member ids.
// Invariant: every TrackedResponse in a request's partial list has
// Response.Success == true.
type TrackedResponse struct {
	CouncilMemberID string
	Response        ProviderResponse
	Timestamp       time.Time
}

// Exchange is one row in a deliberation round.
type Exchange struct {
	CouncilMemberID string
	Content         string
	ReferencesTo    []string
	Usage           TokenUsage
}

// DeliberationRound is one fan-out/fan-in iteration. Round 0 is the initial
// answer; rounds 1..R are peer reviews.
type DeliberationRound struct {
	RoundNumber int
	Exchanges   []Exchange
}

// DeliberationThread is the ordered record of rounds handed to synthesis.
type DeliberationThread struct {
	Rounds          []DeliberationRound
	TotalDurationMs float64
}

// Confidence is the synthesis collaborator's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConsensusDecision is the single reduction of a deliberation thread,
// produced by the Synthesis collaborator.
type ConsensusDecision struct {
	Content              string
	Confidence           Confidence
	AgreementLevel       float64
	Strategy             string
	ContributingMembers  []string
	Timestamp            time.Time
}

// HealthStatus is the three-state verdict the Health Tracker produces for a
// provider.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDisabled HealthStatus = "disabled"
)

// CostRecord is one request's billed cost, as reported by a collaborator
// outside the orchestration core (pricing/cost calculation is out of
// scope here — this is the record analytics aggregates over).
type CostRecord struct {
	RequestID  string
	ProviderID string
	Model      string
	Cost       float64 // NaN or negative values are skipped by analytics
	Timestamp  time.Time
}

// ProviderHealth is the read-only view of a provider's tracked state,
// exposed by the Provider Pool and the Health Tracker.
type ProviderHealth struct {
	ProviderID     string
	Status         HealthStatus
	SuccessRate    float64
	AvgLatencyMs   float64
	LastFailureAt  *time.Time
	DisabledReason string
}
