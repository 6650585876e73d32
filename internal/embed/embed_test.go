package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// mockEmbedder implements ai.Embedder for testing
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: m.vector}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func TestClientEmbed(t *testing.T) {
	mock := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	client := NewClient(mock, 0, nil)

	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(vec))
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 call, got %d", mock.calls)
	}
}

func TestClientEmbedEmptyResponse(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "nil vector", vector: nil},
		{name: "zero-length vector", vector: []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&mockEmbedder{vector: tt.vector}, 0, nil)
			_, err := client.Embed(context.Background(), "hello")
			if !errors.Is(err, ErrEmptyEmbedding) {
				t.Errorf("expected ErrEmptyEmbedding, got %v", err)
			}
		})
	}
}

func TestClientEmbedServiceError(t *testing.T) {
	serviceErr := errors.New("model unavailable")
	client := NewClient(&mockEmbedder{err: serviceErr}, 0, nil)

	_, err := client.Embed(context.Background(), "hello")
	if !errors.Is(err, serviceErr) {
		t.Errorf("expected wrapped service error, got %v", err)
	}
}

func TestClientEmbedTimeout(t *testing.T) {
	client := NewClient(&mockEmbedder{err: context.DeadlineExceeded}, time.Millisecond, nil)

	_, err := client.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
