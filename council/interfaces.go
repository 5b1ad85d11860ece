package council

import "context"

// ConfigProvider supplies the council roster and the four configuration
// records. Values may change between calls; the orchestration core re-reads
// them at the start of every processRequest.
type ConfigProvider interface {
	GetCouncilConfig(ctx context.Context) (CouncilConfig, error)
	GetDeliberationConfig(ctx context.Context) (DeliberationConfig, error)
	GetPerformanceConfig(ctx context.Context) (PerformanceConfig, error)
	GetSynthesisConfig(ctx context.Context) (SynthesisConfig, error)
}

// ProviderPool is the thin dispatcher from (member, prompt, context) to an
// upstream adapter. Implementations must refuse disabled providers with
// ErrProviderDisabled, refuse unconfigured adapters with
// ErrAdapterNotConfigured, and report every outcome to the Health Tracker
// exactly once.
type ProviderPool interface {
	SendRequest(ctx context.Context, member CouncilMember, prompt string, convCtx *ConversationContext) ProviderResponse
	GetProviderHealth(providerID string) (ProviderHealth, bool)
	MarkProviderDisabled(providerID string, reason string)
}

// SynthesisEngine consumes a deliberation thread and the strategy
// descriptor configured for the request, and returns a single consensus
// decision. Implementations must treat their inputs as read-only.
type SynthesisEngine interface {
	Synthesize(ctx context.Context, request UserRequest, thread DeliberationThread, strategy SynthesisConfig) (ConsensusDecision, error)
}
