package providers

import (
	"context"
	"fmt"

	"github.com/dshills/amber/internal/fetch"
)

// Attachment is a base64-encoded media unit sent alongside the prompt.
type Attachment struct {
	MediaType string
	Data      string
}

// EvalRequest carries an assembled context bundle and a prompt to a model.
type EvalRequest struct {
	System      string
	Prompt      string
	Attachments []Attachment
	CacheSystem bool
	MaxTokens   int
	Temperature float64
}

// EvalResponse contains the model's reply and token accounting. CachedTokens
// counts input tokens the provider served from its prompt cache.
type EvalResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// Evaluator is the model transport abstraction.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (EvalResponse, error)
	Name() string
}

// New creates an evaluator by provider name.
func New(provider, model string, policy fetch.Policy) (Evaluator, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model, policy)
	case "ollama", "lmstudio":
		return NewOllama(model, policy)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
