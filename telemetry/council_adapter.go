package telemetry

import (
	"context"

	"github.com/modelcouncil/council/council"
)

// councilSpan adapts this package's Span to council.Span.
type councilSpan struct {
	inner Span
}

func (s councilSpan) End()                                    { s.inner.End() }
func (s councilSpan) SetAttribute(key string, value interface{}) { s.inner.SetAttribute(key, value) }
func (s councilSpan) RecordError(err error)                   { s.inner.RecordError(err) }

// CouncilAdapter wraps an OTelProvider to satisfy council.Telemetry,
// since the orchestration core and its collaborators depend on that
// interface rather than this package's own Span/Telemetry shapes.
type CouncilAdapter struct {
	provider *OTelProvider
}

// NewCouncilAdapter wraps provider for use as a council.Telemetry.
func NewCouncilAdapter(provider *OTelProvider) *CouncilAdapter {
	return &CouncilAdapter{provider: provider}
}

// StartSpan implements council.Telemetry.
func (a *CouncilAdapter) StartSpan(ctx context.Context, name string) (context.Context, council.Span) {
	newCtx, span := a.provider.StartSpan(ctx, name)
	return newCtx, councilSpan{inner: span}
}

// RecordMetric implements council.Telemetry.
func (a *CouncilAdapter) RecordMetric(name string, value float64, labels map[string]string) {
	a.provider.RecordMetric(name, value, labels)
}

// Shutdown delegates to the wrapped provider.
func (a *CouncilAdapter) Shutdown(ctx context.Context) error {
	return a.provider.Shutdown(ctx)
}
