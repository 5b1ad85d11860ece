package council

import (
	"context"
	"errors"
)

// AIOptions configures one generation call to an upstream model.
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// AIResponse is a single upstream completion.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// AIClient is the minimal contract a provider adapter must satisfy to sit
// behind the Provider Pool.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
}

// StreamChunk is one increment of a streamed generation.
type StreamChunk struct {
	Content string
	Done    bool
}

// StreamCallback receives each chunk as it arrives; returning an error
// aborts the stream.
type StreamCallback func(chunk StreamChunk) error

// ErrStreamPartiallyCompleted is returned alongside the partial AIResponse
// accumulated so far when a stream is aborted mid-flight.
var ErrStreamPartiallyCompleted = errors.New("stream partially completed")

// StreamingAIClient is implemented by adapters that support token-by-token
// delivery (used when PerformanceConfig.Streaming is set; transparent to
// the orchestration core).
type StreamingAIClient interface {
	AIClient
	StreamResponse(ctx context.Context, prompt string, options *AIOptions, callback StreamCallback) (*AIResponse, error)
}
