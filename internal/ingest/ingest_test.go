package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/extract"
)

// mockDocStore implements DocumentStore for testing
type mockDocStore struct {
	doc *document.Document

	chunks       []*document.Chunk
	status       document.Status
	failedDetail string
	pageCount    int
	chunkCount   int

	insertErr     error
	insertErrOnce bool // fail only the first insert

	deleteCalls     int
	processingCalls int
}

func (m *mockDocStore) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	if m.doc == nil || m.doc.ID != id {
		return nil, document.ErrNotFound
	}
	return m.doc, nil
}

func (m *mockDocStore) SetProcessing(ctx context.Context, id uuid.UUID) error {
	m.processingCalls++
	m.status = document.StatusProcessing
	return nil
}

func (m *mockDocStore) SetCompleted(ctx context.Context, id uuid.UUID, pageCount, chunkCount int) error {
	m.status = document.StatusCompleted
	m.pageCount = pageCount
	m.chunkCount = chunkCount
	return nil
}

func (m *mockDocStore) SetFailed(ctx context.Context, id uuid.UUID, detail string) error {
	m.status = document.StatusFailed
	m.failedDetail = detail
	return nil
}

func (m *mockDocStore) InsertChunk(ctx context.Context, c *document.Chunk) error {
	if m.insertErr != nil {
		err := m.insertErr
		if m.insertErrOnce {
			m.insertErr = nil
		}
		return err
	}
	m.chunks = append(m.chunks, c)
	return nil
}

func (m *mockDocStore) DeleteChunks(ctx context.Context, documentID uuid.UUID) (int64, error) {
	m.deleteCalls++
	n := int64(len(m.chunks))
	m.chunks = nil
	return n, nil
}

// mockBlobs implements BlobGetter for testing
type mockBlobs struct {
	data map[string][]byte
}

func (m *mockBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}

// mockEmbedder implements embed.Embedder for testing
type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testOptions() Options {
	return Options{
		ChunkMaxChars:     2000,
		ChunkOverlapChars: 200,
		MinTextLength:     50,
		EmbedRatePerSec:   1000,
		EmbedBurst:        1000,
	}
}

func testDoc(kind string) *document.Document {
	return &document.Document{
		ID:     uuid.New(),
		Title:  "Device Manual",
		Kind:   kind,
		Status: document.StatusPending,
	}
}

const sampleText = "The device supports a factory reset through the power button.\n\n" +
	"Hold the power button for ten seconds until the status light blinks twice, then release it."

func TestPipelineRun(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte(sampleText)}}
	embedder := &mockEmbedder{}
	pipeline := New(docs, blobs, embedder, testOptions(), nil)

	result, err := pipeline.Run(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if docs.status != document.StatusCompleted {
		t.Errorf("status = %q, want completed", docs.status)
	}
	if result.Chunks != 1 {
		t.Errorf("result.Chunks = %d, want 1", result.Chunks)
	}
	if docs.chunkCount != 1 {
		t.Errorf("recorded chunk count = %d, want 1", docs.chunkCount)
	}
	if len(docs.chunks) != 1 {
		t.Fatalf("stored chunks = %d, want 1", len(docs.chunks))
	}
	if docs.chunks[0].SeqIndex != 0 {
		t.Errorf("first chunk seq index = %d, want 0", docs.chunks[0].SeqIndex)
	}
	if embedder.calls != 1 {
		t.Errorf("embedding calls = %d, want 1", embedder.calls)
	}
	if docs.processingCalls != 1 {
		t.Errorf("processing transitions = %d, want 1", docs.processingCalls)
	}
}

func TestPipelineRunNotFound(t *testing.T) {
	docs := &mockDocStore{}
	pipeline := New(docs, &mockBlobs{}, &mockEmbedder{}, testOptions(), nil)

	_, err := pipeline.Run(context.Background(), uuid.New())
	if !errors.Is(err, document.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if docs.status == document.StatusFailed {
		t.Errorf("missing document must not be marked failed")
	}
}

func TestPipelineRunBlobMissing(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	pipeline := New(docs, &mockBlobs{}, &mockEmbedder{}, testOptions(), nil)

	_, err := pipeline.Run(context.Background(), doc.ID)
	if err == nil {
		t.Fatal("expected error for missing blob")
	}
	if docs.status != document.StatusFailed {
		t.Errorf("status = %q, want failed", docs.status)
	}
	if !strings.Contains(docs.failedDetail, "fetching raw file") {
		t.Errorf("expected fetch error captured, got %q", docs.failedDetail)
	}
}

func TestPipelineRunExtractionTooShort(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte("tiny")}}
	pipeline := New(docs, blobs, &mockEmbedder{}, testOptions(), nil)

	_, err := pipeline.Run(context.Background(), doc.ID)
	if !errors.Is(err, extract.ErrTextTooShort) {
		t.Errorf("expected ErrTextTooShort, got %v", err)
	}
	if docs.status != document.StatusFailed {
		t.Errorf("status = %q, want failed", docs.status)
	}
}

func TestPipelineRunEmbedFailureFailsDocument(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte(sampleText)}}
	embedErr := errors.New("rate limited")
	pipeline := New(docs, blobs, &mockEmbedder{err: embedErr}, testOptions(), nil)

	_, err := pipeline.Run(context.Background(), doc.ID)
	if !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embed error, got %v", err)
	}
	if docs.status != document.StatusFailed {
		t.Errorf("status = %q, want failed", docs.status)
	}
	if !strings.Contains(docs.failedDetail, "rate limited") {
		t.Errorf("expected verbatim cause in detail, got %q", docs.failedDetail)
	}
}

func TestPipelineRunPartialInsertFailure(t *testing.T) {
	doc := testDoc("txt")
	// Three paragraphs around 1200 chars each force multiple chunks at
	// maxChars 2000.
	text := strings.Repeat("a", 1200) + "\n\n" + strings.Repeat("b", 1200) + "\n\n" + strings.Repeat("c", 1200)
	docs := &mockDocStore{doc: doc, insertErr: errors.New("constraint violation"), insertErrOnce: true}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte(text)}}
	pipeline := New(docs, blobs, &mockEmbedder{}, testOptions(), nil)

	result, err := pipeline.Run(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if docs.status != document.StatusCompleted {
		t.Errorf("status = %q, want completed despite one insert failure", docs.status)
	}
	if result.Chunks != len(docs.chunks) {
		t.Errorf("result.Chunks = %d, stored = %d", result.Chunks, len(docs.chunks))
	}
	if docs.chunkCount != len(docs.chunks) {
		t.Errorf("recorded chunk count = %d, want %d (only stored chunks)", docs.chunkCount, len(docs.chunks))
	}
}

func TestPipelineRunClearsPreviousChunks(t *testing.T) {
	doc := testDoc("txt")
	doc.Status = document.StatusFailed
	docs := &mockDocStore{doc: doc}
	docs.chunks = []*document.Chunk{{DocumentID: doc.ID, SeqIndex: 0}}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte(sampleText)}}
	pipeline := New(docs, blobs, &mockEmbedder{}, testOptions(), nil)

	result, err := pipeline.Run(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if docs.deleteCalls != 1 {
		t.Errorf("delete calls = %d, want 1", docs.deleteCalls)
	}
	if len(docs.chunks) != result.Chunks {
		t.Errorf("stored chunks = %d, want %d (old chunks removed)", len(docs.chunks), result.Chunks)
	}
}

func TestPipelineRunRepeatedFailureLeavesNoChunks(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte("tiny")}}
	pipeline := New(docs, blobs, &mockEmbedder{}, testOptions(), nil)

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := pipeline.Run(context.Background(), doc.ID)
		if !errors.Is(err, extract.ErrTextTooShort) {
			t.Fatalf("attempt %d: expected ErrTextTooShort, got %v", attempt, err)
		}
		if len(docs.chunks) != 0 {
			t.Errorf("attempt %d: %d chunks persisted, want 0", attempt, len(docs.chunks))
		}
		if docs.status != document.StatusFailed {
			t.Errorf("attempt %d: status = %q, want failed", attempt, docs.status)
		}
	}
}

func TestPipelineRunCancelled(t *testing.T) {
	doc := testDoc("txt")
	docs := &mockDocStore{doc: doc}
	blobs := &mockBlobs{data: map[string][]byte{doc.ID.String(): []byte(sampleText)}}
	opts := testOptions()
	opts.EmbedRatePerSec = 0.001
	opts.EmbedBurst = 0
	pipeline := New(docs, blobs, &mockEmbedder{}, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Run(ctx, doc.ID)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if docs.status != document.StatusFailed {
		t.Errorf("status = %q, want failed", docs.status)
	}
}
