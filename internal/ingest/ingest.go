// Package ingest turns stored files into searchable, embedded chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"

	"github.com/sourcedesk/sourcedesk/internal/chunker"
	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/embed"
	"github.com/sourcedesk/sourcedesk/internal/extract"
)

// ErrNoChunks indicates the chunker produced nothing from extracted text.
var ErrNoChunks = errors.New("no chunks produced from document text")

// DocumentStore is the document persistence surface the pipeline needs.
type DocumentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*document.Document, error)
	SetProcessing(ctx context.Context, id uuid.UUID) error
	SetCompleted(ctx context.Context, id uuid.UUID, pageCount, chunkCount int) error
	SetFailed(ctx context.Context, id uuid.UUID, detail string) error
	InsertChunk(ctx context.Context, c *document.Chunk) error
	DeleteChunks(ctx context.Context, documentID uuid.UUID) (int64, error)
}

// BlobGetter fetches raw uploaded file bytes by key.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Options tunes one pipeline instance.
type Options struct {
	ChunkMaxChars     int
	ChunkOverlapChars int
	MinTextLength     int

	// EmbedRatePerSec and EmbedBurst size the token bucket that throttles
	// embedding requests to stay under the service's rate limit.
	EmbedRatePerSec float64
	EmbedBurst      int
}

// Result summarizes a completed ingestion run.
type Result struct {
	DocumentID uuid.UUID
	Chunks     int
	Pages      int
}

// Pipeline runs extraction, chunking, embedding, and storage for one
// document at a time. Concurrent runs on distinct documents need no
// coordination; the embedding limiter is shared so aggregate throughput
// stays bounded.
type Pipeline struct {
	docs     DocumentStore
	blobs    BlobGetter
	embedder embed.Embedder
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
}

// New creates a Pipeline. A nil logger selects slog.Default().
func New(docs DocumentStore, blobs BlobGetter, embedder embed.Embedder, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		docs:     docs,
		blobs:    blobs,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(opts.EmbedRatePerSec), opts.EmbedBurst),
		opts:     opts,
		logger:   logger,
	}
}

// Run processes one document end to end. Any failure between blob fetch and
// chunking marks the document failed with the error captured verbatim.
// Individual chunk insert failures are logged and skipped; the final chunk
// count reflects only stored chunks. Re-running after a failure first
// removes any chunks left behind by the previous attempt.
func (p *Pipeline) Run(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	deleted, err := p.docs.DeleteChunks(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("clearing previous chunks: %w", err)
	}
	if deleted > 0 {
		p.logger.Info("removed chunks from previous attempt", "document_id", doc.ID, "chunks", deleted)
	}

	if err := p.docs.SetProcessing(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("marking document processing: %w", err)
	}

	raw, err := p.blobs.Get(ctx, doc.ID.String())
	if err != nil {
		return nil, p.fail(ctx, doc.ID, fmt.Errorf("fetching raw file: %w", err))
	}

	text, err := extract.Text(doc.Kind, raw, p.opts.MinTextLength)
	if err != nil {
		return nil, p.fail(ctx, doc.ID, fmt.Errorf("extracting text: %w", err))
	}

	chunks := chunker.Split(text, chunker.Options{
		MaxChars:     p.opts.ChunkMaxChars,
		OverlapChars: p.opts.ChunkOverlapChars,
	})
	if len(chunks) == 0 {
		return nil, p.fail(ctx, doc.ID, ErrNoChunks)
	}

	stored := 0
	pages := 0
	for _, c := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, p.fail(ctx, doc.ID, fmt.Errorf("waiting for embedding capacity: %w", err))
		}

		vec, err := p.embedder.Embed(ctx, c.Content)
		if err != nil {
			return nil, p.fail(ctx, doc.ID, fmt.Errorf("embedding chunk %d: %w", c.SeqIndex, err))
		}

		chunk := &document.Chunk{
			DocumentID:   doc.ID,
			SeqIndex:     c.SeqIndex,
			Content:      c.Content,
			Embedding:    pgvector.NewVector(vec),
			PageNumber:   c.PageNumber,
			SectionTitle: c.SectionTitle,
			StartOffset:  c.StartOffset,
			EndOffset:    c.EndOffset,
			TokenCount:   c.TokenEstimate,
		}
		if err := p.docs.InsertChunk(ctx, chunk); err != nil {
			p.logger.Error("storing chunk failed, skipping",
				"document_id", doc.ID, "seq_index", c.SeqIndex, "error", err)
			continue
		}
		stored++
		if c.PageNumber > pages {
			pages = c.PageNumber
		}
	}

	if err := p.docs.SetCompleted(ctx, doc.ID, pages, stored); err != nil {
		return nil, fmt.Errorf("marking document completed: %w", err)
	}

	p.logger.Info("document ingested", "document_id", doc.ID, "chunks", stored, "pages", pages)
	return &Result{DocumentID: doc.ID, Chunks: stored, Pages: pages}, nil
}

// fail transitions the document to failed with the cause captured verbatim,
// then returns the cause. A failed status write is logged; the original
// error still wins.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, cause error) error {
	if err := p.docs.SetFailed(ctx, id, cause.Error()); err != nil {
		p.logger.Error("marking document failed", "document_id", id, "error", err)
	}
	return cause
}
