package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/extract"
	"github.com/sourcedesk/sourcedesk/internal/ingest"
	"github.com/sourcedesk/sourcedesk/internal/log"
)

// Ingester runs the ingestion pipeline for one document.
type Ingester interface {
	Run(ctx context.Context, documentID uuid.UUID) (*ingest.Result, error)
}

// IngestHandler handles the ingestion trigger endpoint.
type IngestHandler struct {
	pipeline Ingester
	logger   log.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(pipeline Ingester, logger log.Logger) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers ingestion routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest", h.trigger)
}

// IngestRequest is the ingestion trigger input.
type IngestRequest struct {
	DocumentID string `json:"documentId"`
}

// IngestResponse is the ingestion trigger output.
type IngestResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Chunks     int    `json:"chunks"`
	Message    string `json:"message"`
}

// trigger runs ingestion for a registered document. Extraction failures are
// reported as unprocessable input; the document is already marked failed by
// the pipeline when this returns.
func (h *IngestHandler) trigger(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "documentId must be a valid UUID")
		return
	}

	result, err := h.pipeline.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrNotFound):
			writeError(w, http.StatusNotFound, "document_not_found", "document does not exist")
		case errors.Is(err, extract.ErrTextTooShort),
			errors.Is(err, extract.ErrUnsupportedKind),
			errors.Is(err, extract.ErrInvalidEncoding),
			errors.Is(err, ingest.ErrNoChunks):
			writeError(w, http.StatusUnprocessableEntity, "extraction_failed", err.Error())
		default:
			h.logger.Error("ingestion failed", "error", err, "document_id", id)
			writeError(w, http.StatusInternalServerError, "ingestion_failed", "document processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Success:    true,
		DocumentID: result.DocumentID.String(),
		Chunks:     result.Chunks,
		Message:    fmt.Sprintf("document processed into %d chunks", result.Chunks),
	})
}
