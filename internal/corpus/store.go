package corpus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store runs similarity searches against the chunks table.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger selects slog.Default().
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Search returns up to limit chunks whose cosine similarity against the
// query embedding exceeds threshold, most similar first. Only chunks of
// active, fully processed documents are candidates.
func (s *Store) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Candidate, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, d.title, c.content,
		        COALESCE(c.section_title, ''), c.page_number,
		        1 - (c.embedding <=> $1) AS similarity
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.is_active AND d.status = 'completed'
		   AND 1 - (c.embedding <=> $1) > $2
		 ORDER BY c.embedding <=> $1, c.id
		 LIMIT $3`,
		vec, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentTitle, &c.Content,
			&c.SectionTitle, &c.PageNumber, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading candidates: %w", err)
	}

	s.logger.Debug("similarity search", "candidates", len(candidates), "threshold", threshold, "limit", limit)
	return candidates, nil
}
