// Package auditlog persists one record per answered or blocked interaction.
//
// Recording is best effort: a persistence failure is logged and swallowed so
// an audit outage never turns into a user-facing error.
package auditlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRef identifies one retrieved chunk that backed an interaction.
type SourceRef struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	SectionTitle  string    `json:"section_title,omitempty"`
	PageNumber    int       `json:"page_number,omitempty"`
	Similarity    float64   `json:"similarity"`
	Cited         bool      `json:"cited"`
}

// Entry is one interaction outcome to persist.
type Entry struct {
	SessionID             string
	UserID                string
	Query                 string
	Response              string
	Verdict               string
	Reason                string
	Checks                map[string]bool
	Sources               []SourceRef
	Confidence            float64
	HallucinationDetected bool
	Blocked               bool
	FallbackMessage       string
	Latency               time.Duration
}

// Store writes interaction records to the interaction_logs table.
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

// recordTimeout bounds the audit insert once detached from the request.
const recordTimeout = 5 * time.Second

// Record persists an interaction entry. Failures are logged at error level
// and not returned; the answer path must not depend on audit availability.
// The write is detached from request cancellation so a client disconnect
// after a terminal outcome still leaves an audit row.
func (s *Store) Record(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	checks, err := json.Marshal(e.Checks)
	if err != nil {
		s.logger.Error("marshaling interaction checks", "error", err)
		checks = []byte("{}")
	}
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		s.logger.Error("marshaling interaction sources", "error", err)
		sources = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO interaction_logs
		   (session_id, user_id, query, ai_response, verdict, reason, checks,
		    sources, confidence, hallucination_detected, blocked,
		    fallback_message, latency_ms)
		 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7,
		         $8, $9, $10, $11, NULLIF($12, ''), $13)`,
		e.SessionID, e.UserID, e.Query, e.Response, e.Verdict, e.Reason, checks,
		sources, e.Confidence, e.HallucinationDetected, e.Blocked,
		e.FallbackMessage, e.Latency.Milliseconds(),
	)
	if err != nil {
		s.logger.Error("recording interaction", "error", err, "verdict", e.Verdict)
		return
	}

	s.logger.Debug("interaction recorded", "verdict", e.Verdict, "blocked", e.Blocked)
}
