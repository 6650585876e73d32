// Package document manages source documents and their chunks.
//
// A document moves through a processing-status state machine:
//
//	pending → processing → completed
//	                     ↘ failed
//
// Status transitions are persisted immediately so concurrent status queries
// observe progress. Soft deleting a document (is_active=false) excludes its
// chunks from retrieval without deleting the stored vectors.
package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Status is the document processing state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Sentinel errors for document operations, checked with errors.Is().
var (
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateContent indicates an active document with the same content
	// hash already exists. Duplicate uploads are rejected before processing.
	ErrDuplicateContent = errors.New("duplicate document content")
)

// Document is a source file registered for retrieval.
type Document struct {
	ID          uuid.UUID
	Title       string
	ContentHash string // sha256 hex, unique among active documents
	SizeBytes   int64
	Kind        string // extract.Kind* value
	Status      Status
	ErrorDetail string
	PageCount   int
	ChunkCount  int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Chunk is an immutable, size-bounded slice of a document's extracted text.
// Reprocessing a document deletes and recreates all of its chunks.
type Chunk struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	SeqIndex     int // contiguous from 0 per document
	Content      string
	Embedding    pgvector.Vector
	PageNumber   int
	SectionTitle string
	StartOffset  int
	EndOffset    int
	TokenCount   int
	CreatedAt    time.Time
}
