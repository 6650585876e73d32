package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sourcedesk/sourcedesk/internal/guardrail"
	"github.com/sourcedesk/sourcedesk/internal/log"
)

// MaxQueryLength bounds accepted query text.
const MaxQueryLength = 4000

// Answerer runs the guardrail gates for one query.
type Answerer interface {
	Answer(ctx context.Context, q guardrail.Query) (*guardrail.Answer, error)
}

// ChatHandler handles the guardrail-gated chat endpoint.
type ChatHandler struct {
	engine Answerer
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(engine Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.send)
}

// ChatRequest is the chat endpoint input.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
}

// send answers a single question. Guardrail blocks are successful responses
// with blocked=true; only service failures produce error payloads, and those
// stay generic while the cause goes to the operational log.
func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query exceeds maximum length")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required")
		return
	}

	answer, err := h.engine.Answer(r.Context(), guardrail.Query{
		Text:      req.Query,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		if errors.Is(err, guardrail.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "missing_query", "query is required")
			return
		}
		h.logger.Error("answering query failed", "error", err, "session_id", req.SessionID)
		writeError(w, http.StatusBadGateway, "service_unavailable",
			"Sorry, I could not process your question right now. Please try again shortly.")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
