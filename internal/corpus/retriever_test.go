package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// mockSearcher implements Searcher for testing
type mockSearcher struct {
	candidates []Candidate
	err        error

	gotEmbedding []float32
	gotThreshold float64
	gotLimit     int
}

func (m *mockSearcher) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Candidate, error) {
	m.gotEmbedding = embedding
	m.gotThreshold = threshold
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

// mockTextEmbedder implements embed.Embedder for testing
type mockTextEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockTextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func TestRetrieverRetrieve(t *testing.T) {
	want := []Candidate{
		{ChunkID: uuid.New(), DocumentTitle: "Handbook", Content: "refund policy", Similarity: 0.91},
		{ChunkID: uuid.New(), DocumentTitle: "Handbook", Content: "shipping policy", Similarity: 0.72},
	}
	searcher := &mockSearcher{candidates: want}
	embedder := &mockTextEmbedder{vector: []float32{0.1, 0.2}}
	retriever := NewRetriever(searcher, embedder, Params{MatchThreshold: 0.5, MatchCount: 5}, nil)

	got, err := retriever.Retrieve(context.Background(), "what is the refund policy?")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Content != "refund policy" {
		t.Errorf("expected most similar candidate first, got %q", got[0].Content)
	}
	if embedder.calls != 1 {
		t.Errorf("expected 1 embedding call, got %d", embedder.calls)
	}
	if searcher.gotThreshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", searcher.gotThreshold)
	}
	if searcher.gotLimit != 5 {
		t.Errorf("limit = %v, want 5", searcher.gotLimit)
	}
	if len(searcher.gotEmbedding) != 2 {
		t.Errorf("expected query embedding forwarded to searcher")
	}
}

func TestRetrieverRetrieveEmptyQuery(t *testing.T) {
	embedder := &mockTextEmbedder{vector: []float32{0.1}}
	retriever := NewRetriever(&mockSearcher{}, embedder, Params{}, nil)

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := retriever.Retrieve(context.Background(), query)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("query %q: expected ErrEmptyQuery, got %v", query, err)
		}
	}
	if embedder.calls != 0 {
		t.Errorf("expected no embedding calls for empty queries, got %d", embedder.calls)
	}
}

func TestRetrieverRetrieveNoMatches(t *testing.T) {
	retriever := NewRetriever(&mockSearcher{}, &mockTextEmbedder{vector: []float32{0.1}}, Params{}, nil)

	got, err := retriever.Retrieve(context.Background(), "unrelated question")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func TestRetrieverRetrieveEmbedError(t *testing.T) {
	embedErr := errors.New("embedding service down")
	retriever := NewRetriever(&mockSearcher{}, &mockTextEmbedder{err: embedErr}, Params{}, nil)

	_, err := retriever.Retrieve(context.Background(), "question")
	if !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embed error, got %v", err)
	}
}

func TestRetrieverRetrieveSearchError(t *testing.T) {
	searchErr := errors.New("database unavailable")
	retriever := NewRetriever(&mockSearcher{err: searchErr}, &mockTextEmbedder{vector: []float32{0.1}}, Params{}, nil)

	_, err := retriever.Retrieve(context.Background(), "question")
	if !errors.Is(err, searchErr) {
		t.Errorf("expected wrapped search error, got %v", err)
	}
}
