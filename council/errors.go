package council

import (
	"errors"
	"fmt"
)

// ErrorKind tags a structured adapter/orchestration failure. The
// orchestrator inspects the tag rather than the error's string form to
// decide whether a failure counts against provider health.
type ErrorKind string

const (
	// Surfaced by processRequest.
	KindConfigurationError ErrorKind = "ConfigurationError"
	KindInsufficientQuorum ErrorKind = "InsufficientQuorum"
	KindNoResponses        ErrorKind = "NoResponses"
	KindSynthesisError     ErrorKind = "SynthesisError"

	// Adapter-facing, consumed internally and never surfaced directly.
	KindMemberTimeout        ErrorKind = "MemberTimeout"
	KindProviderDisabled     ErrorKind = "ProviderDisabled"
	KindAdapterNotConfigured ErrorKind = "AdapterNotConfigured"
	KindRateLimit            ErrorKind = "RateLimit"
	KindUpstreamError        ErrorKind = "UpstreamError"
	KindTransportError       ErrorKind = "TransportError"
)

// CountsAgainstHealth reports whether a failure of this kind should be
// recorded against the provider's consecutive-failure counter. The adapter
// never produced AdapterNotConfigured/ProviderDisabled from the upstream,
// so they are excluded.
func (k ErrorKind) CountsAgainstHealth() bool {
	switch k {
	case KindAdapterNotConfigured, KindProviderDisabled:
		return false
	default:
		return true
	}
}

// Sentinel errors for comparison via errors.Is(). These wrap the error
// kinds that can escape processRequest, plus a couple of low-level
// conditions the orchestration core and its collaborators check for.
var (
	ErrConfigurationError = errors.New("invalid council configuration")
	ErrInsufficientQuorum = errors.New("active members below minimum quorum")
	ErrNoResponses        = errors.New("no successful member responses")
	ErrSynthesisError     = errors.New("synthesis collaborator failed")

	ErrProviderDisabled     = errors.New("provider is disabled")
	ErrAdapterNotConfigured = errors.New("no adapter bound for provider")
	ErrContextCanceled      = errors.New("context canceled")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker is open")
	ErrMaxRetriesExceeded   = errors.New("maximum retries exceeded")
	ErrMemberNotFound       = errors.New("council member not found")
	ErrConnectionFailed     = errors.New("connection failed")

	errNotFound = errors.New("not found")
	errBadState = errors.New("invalid state transition")
)

// FrameworkError carries structured context around a wrapped error:
// the operation that failed, its kind, and an optional entity id.
type FrameworkError struct {
	Op      string
	Kind    ErrorKind
	ID      string
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's Kind, so errors.Is(err, ErrNoResponses)
// holds for a FrameworkError of kind NoResponses whatever error it wraps.
func (e *FrameworkError) Is(target error) bool {
	switch target {
	case ErrConfigurationError:
		return e.Kind == KindConfigurationError
	case ErrInsufficientQuorum:
		return e.Kind == KindInsufficientQuorum
	case ErrNoResponses:
		return e.Kind == KindNoResponses
	case ErrSynthesisError:
		return e.Kind == KindSynthesisError
	}
	return false
}

// NewFrameworkError wraps err with operation/kind context.
func NewFrameworkError(op string, kind ErrorKind, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// IsConfigurationError reports whether err represents malformed or invalid
// configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfigurationError)
}

// IsInsufficientQuorum reports whether err represents too few active
// members to satisfy RequireMinimumForConsensus.
func IsInsufficientQuorum(err error) bool {
	return errors.Is(err, ErrInsufficientQuorum)
}

// IsNoResponses reports whether err represents a fan-out that produced zero
// successful TrackedResponses.
func IsNoResponses(err error) bool {
	return errors.Is(err, ErrNoResponses)
}

// IsSynthesisError reports whether err originated in the Synthesis
// collaborator.
func IsSynthesisError(err error) bool {
	return errors.Is(err, ErrSynthesisError)
}

// IsNotFound reports whether err represents a missing entity (provider,
// member, adapter). Adapter-not-configured and provider-disabled are
// deliberately excluded since they are not "not found" conditions.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound) || errors.Is(err, ErrMemberNotFound)
}

// IsStateError reports whether err represents an invalid state transition
// (e.g. acting on an already-shutdown component).
func IsStateError(err error) bool {
	return errors.Is(err, errBadState)
}
