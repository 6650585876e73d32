package guardrail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// ErrCompletionTimeout indicates the completion call exceeded its deadline.
var ErrCompletionTimeout = errors.New("completion request timed out")

// DefaultCompletionTimeout bounds a single completion request.
const DefaultCompletionTimeout = 60 * time.Second

// CompletionRequest is one constrained generation request.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer generates a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// GenkitCompleter runs completions through a Genkit model.
type GenkitCompleter struct {
	genkit    *genkit.Genkit
	modelName string
	timeout   time.Duration
}

// NewGenkitCompleter creates a GenkitCompleter. A zero timeout selects
// DefaultCompletionTimeout.
func NewGenkitCompleter(g *genkit.Genkit, modelName string, timeout time.Duration) *GenkitCompleter {
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &GenkitCompleter{genkit: g, modelName: modelName, timeout: timeout}
}

// Complete issues a single completion request. A deadline overrun is
// reported as ErrCompletionTimeout so callers can classify it as a service
// failure.
func (c *GenkitCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.modelName),
		ai.WithSystem(req.System),
		ai.WithPrompt(req.Prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(req.Temperature)),
			MaxOutputTokens: int32(req.MaxTokens),
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return "", fmt.Errorf("generating completion: %w", err)
	}

	return resp.Text(), nil
}
