package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/log"
)

// Listing bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListOffset    = 100000
)

// DocumentHandler handles document listing and deletion endpoints.
type DocumentHandler struct {
	store  *document.Store
	logger log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(store *document.Store, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("GET /api/documents/{id}", h.get)
	mux.HandleFunc("DELETE /api/documents/{id}", h.remove)
}

// DocumentResponse is the client-facing document shape.
type DocumentResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	ErrorDetail string     `json:"errorDetail,omitempty"`
	SizeBytes   int64      `json:"sizeBytes"`
	PageCount   int        `json:"pageCount"`
	ChunkCount  int        `json:"chunkCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toDocumentResponse(d *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID.String(),
		Title:       d.Title,
		Kind:        d.Kind,
		Status:      string(d.Status),
		ErrorDetail: d.ErrorDetail,
		SizeBytes:   d.SizeBytes,
		PageCount:   d.PageCount,
		ChunkCount:  d.ChunkCount,
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
	}
}

// list returns active documents with pagination.
// Query parameters:
//   - limit: maximum documents to return (default 100, max 1000)
//   - offset: documents to skip (default 0)
func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	docs, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list documents")
		return
	}

	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// get returns one document by id.
func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "id must be a valid UUID")
		return
	}

	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document_not_found", "document does not exist")
			return
		}
		h.logger.Error("loading document failed", "error", err, "document_id", id)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to load document")
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// remove soft-deletes a document, excluding its chunks from retrieval.
func (h *DocumentHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "id must be a valid UUID")
		return
	}

	if err := h.store.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document_not_found", "document does not exist")
			return
		}
		h.logger.Error("deleting document failed", "error", err, "document_id", id)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// parseIntParam reads an integer query parameter, clamping to [minVal, maxVal].
func parseIntParam(r *http.Request, name string, def, minVal, maxVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
