package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Store persists documents and chunks in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a new Store instance. A nil logger selects slog.Default().
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const documentColumns = `id, title, content_hash, size_bytes, kind, status,
	COALESCE(error_detail, ''), page_count, chunk_count, is_active,
	created_at, updated_at, completed_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Title, &d.ContentHash, &d.SizeBytes, &d.Kind,
		&d.Status, &d.ErrorDetail, &d.PageCount, &d.ChunkCount, &d.Active,
		&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create registers a new document in pending state. Returns
// ErrDuplicateContent if an active document with the same content hash
// already exists (enforced by a partial unique index, so concurrent uploads
// cannot race past the check).
func (s *Store) Create(ctx context.Context, title, contentHash, kind string, sizeBytes int64) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (title, content_hash, size_bytes, kind)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+documentColumns,
		title, contentHash, sizeBytes, kind)

	doc, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: hash %s", ErrDuplicateContent, contentHash)
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "title", title, "kind", kind)
	return doc, nil
}

// Get retrieves a document by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// GetByHash retrieves the active document with the given content hash.
// Returns ErrNotFound if none exists.
func (s *Store) GetByHash(ctx context.Context, contentHash string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE content_hash = $1 AND is_active`, contentHash)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: hash %s", ErrNotFound, contentHash)
		}
		return nil, fmt.Errorf("getting document by hash: %w", err)
	}
	return doc, nil
}

// List returns documents ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE is_active ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetProcessing transitions a document to processing state.
func (s *Store) SetProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id,
		`UPDATE documents SET status = 'processing', error_detail = NULL, updated_at = now()
		 WHERE id = $1`)
}

// SetCompleted transitions a document to completed state, stamping the
// completion time and final page/chunk counts.
func (s *Store) SetCompleted(ctx context.Context, id uuid.UUID, pageCount, chunkCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = 'completed', page_count = $2, chunk_count = $3,
		     completed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, pageCount, chunkCount)
	if err != nil {
		return fmt.Errorf("marking document completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("document completed", "id", id, "chunks", chunkCount, "pages", pageCount)
	return nil
}

// SetFailed transitions a document to failed state with the error message
// captured verbatim.
func (s *Store) SetFailed(ctx context.Context, id uuid.UUID, detail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = 'failed', error_detail = $2, updated_at = now()
		 WHERE id = $1`,
		id, detail)
	if err != nil {
		return fmt.Errorf("marking document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("document failed", "id", id, "detail", detail)
	return nil
}

// SoftDelete deactivates a document. Its chunks remain stored but are
// excluded from retrieval by the active-parent filter.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft-deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, sql string) error {
	tag, err := s.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// InsertChunk persists one chunk with its embedding and metadata.
func (s *Store) InsertChunk(ctx context.Context, c *Chunk) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chunks (id, document_id, seq_index, content, embedding,
		                     page_number, section_title, start_offset, end_offset, token_count)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		c.ID, c.DocumentID, c.SeqIndex, c.Content, c.Embedding,
		c.PageNumber, c.SectionTitle, c.StartOffset, c.EndOffset, c.TokenCount)
	if err != nil {
		return fmt.Errorf("inserting chunk %d of document %s: %w", c.SeqIndex, c.DocumentID, err)
	}
	return nil
}

// DeleteChunks removes all chunks of a document. Used by reprocessing so a
// prior failed attempt never leaves orphaned partial chunk sets.
func (s *Store) DeleteChunks(ctx context.Context, documentID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of document %s: %w", documentID, err)
	}
	return tag.RowsAffected(), nil
}

// CountChunks returns the number of stored chunks for a document.
func (s *Store) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks of document %s: %w", documentID, err)
	}
	return count, nil
}
