package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcedesk/sourcedesk/internal/embed"
)

// ErrEmptyQuery indicates a retrieval request with no query text.
var ErrEmptyQuery = errors.New("query text is empty")

// Params tunes a similarity retrieval.
type Params struct {
	// MatchThreshold is the minimum cosine similarity for a chunk to count
	// as relevant.
	MatchThreshold float64

	// MatchCount caps the number of returned chunks.
	MatchCount int
}

// Retriever embeds a query and searches the corpus for relevant chunks.
type Retriever struct {
	searcher Searcher
	embedder embed.Embedder
	params   Params
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger selects slog.Default().
func NewRetriever(searcher Searcher, embedder embed.Embedder, params Params, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, embedder: embedder, params: params, logger: logger}
}

// Retrieve returns the chunks most relevant to the query, most similar
// first. An empty result is not an error; callers decide what a lack of
// sources means.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := r.searcher.Search(ctx, vec, r.params.MatchThreshold, r.params.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}

	r.logger.Debug("retrieved sources", "query_length", len(query), "sources", len(candidates))
	return candidates, nil
}
