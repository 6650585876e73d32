// Package corpus provides similarity search over embedded document chunks.
package corpus

import (
	"context"

	"github.com/google/uuid"
)

// Candidate is one chunk returned by a similarity search, with the cosine
// similarity against the query embedding.
type Candidate struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	Content       string
	SectionTitle  string
	PageNumber    int
	Similarity    float64
}

// Searcher finds chunks by embedding similarity.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Candidate, error)
}
