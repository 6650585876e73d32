// Package embed wraps the embedding model service behind a small consumer
// interface: text in, fixed-length vector out.
//
// Both the ingestion path (chunk embedding) and the query path (query
// embedding) depend on Embedder rather than on a concrete provider, so tests
// substitute a mock and production wires a Genkit-backed adapter.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
)

var (
	// ErrEmptyEmbedding indicates the service returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")

	// ErrTimeout indicates the embedding call exceeded its deadline.
	ErrTimeout = errors.New("embedding request timed out")
)

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 15 * time.Second

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client adapts a Genkit ai.Embedder to the Embedder interface with a
// bounded per-request timeout.
type Client struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient creates a Client. A zero timeout selects DefaultTimeout; a nil
// logger selects slog.Default().
func NewClient(embedder ai.Embedder, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{embedder: embedder, timeout: timeout, logger: logger}
}

// Embed generates an embedding for the given text. A deadline overrun is
// reported as ErrTimeout so callers can classify it as a service failure.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("generating embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := resp.Embeddings[0].Embedding
	c.logger.Debug("generated embedding", "text_length", len(text), "dimensions", len(vec))
	return vec, nil
}
