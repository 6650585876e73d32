package guardrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sourcedesk/sourcedesk/internal/auditlog"
	"github.com/sourcedesk/sourcedesk/internal/config"
	"github.com/sourcedesk/sourcedesk/internal/corpus"
)

// ErrEmptyQuery indicates a request with no query text.
var ErrEmptyQuery = errors.New("query text is empty")

// Verdicts recorded in the audit trail.
const (
	VerdictAccept = "accept"
	VerdictWarn   = "warn"
	VerdictBlock  = "block"
)

// Reason codes attached to warned and blocked outcomes.
const (
	ReasonInsufficientSources = "insufficient_sources"
	ReasonNoCitations         = "no_citations"
	ReasonLowConfidence       = "low_confidence"
)

// Fallback messages shown in place of a blocked answer. These are the only
// block-path texts a user ever sees; raw errors and model output stay out of
// blocked responses.
const (
	fallbackInsufficientSources = "I could not find relevant information in the knowledge base to answer your question. Try rephrasing it, or ask to speak with a support agent."
	fallbackNoCitations         = "I could not verify the answer against the knowledge base, so I cannot share it. Please ask to speak with a support agent."
	fallbackLowConfidence       = "I am not confident enough in the available information to answer reliably. Please ask to speak with a support agent."
)

// lowConfidenceDisclaimer is appended to warned answers that are released
// despite scoring below the confidence threshold.
const lowConfidenceDisclaimer = "Note: this answer is based on limited matching information and may be incomplete. Consider confirming with a support agent."

// Query is one user question to answer.
type Query struct {
	Text      string
	SessionID string
	UserID    string
}

// Source describes one retrieved chunk as returned to the client. Content is
// a truncated preview, not the full chunk text.
type Source struct {
	Index         int       `json:"index"`
	DocumentID    uuid.UUID `json:"documentId"`
	DocumentTitle string    `json:"documentTitle"`
	SectionTitle  string    `json:"sectionTitle,omitempty"`
	Content       string    `json:"content"`
	PageNumber    int       `json:"pageNumber,omitempty"`
	Similarity    float64   `json:"similarity"`
	Cited         bool      `json:"cited"`
}

// Answer is the outcome of one query after all gates have run.
type Answer struct {
	Response           string   `json:"response"`
	Blocked            bool     `json:"blocked"`
	Confidence         float64  `json:"confidence"`
	Sources            []Source `json:"sources"`
	Reason             string   `json:"reason,omitempty"`
	GuardrailTriggered string   `json:"guardrailTriggered,omitempty"`
	SuggestAgent       bool     `json:"suggestAgent,omitempty"`
}

// Retriever finds corpus chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]corpus.Candidate, error)
}

// RulesLoader loads stored guardrail rule overrides.
type RulesLoader interface {
	Load(ctx context.Context) ([]RuleRow, error)
}

// Recorder persists interaction outcomes.
type Recorder interface {
	Record(ctx context.Context, e auditlog.Entry)
}

// Engine runs the guardrail gates for each query.
type Engine struct {
	retriever Retriever
	completer Completer
	rules     RulesLoader
	recorder  Recorder

	defaults    config.GuardrailDefaults
	temperature float64
	logger      *slog.Logger
}

// NewEngine creates an Engine. A nil logger selects slog.Default().
func NewEngine(retriever Retriever, completer Completer, rules RulesLoader, recorder Recorder, defaults config.GuardrailDefaults, temperature float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever:   retriever,
		completer:   completer,
		rules:       rules,
		recorder:    recorder,
		defaults:    defaults,
		temperature: temperature,
		logger:      logger,
	}
}

// Answer runs the full gate sequence for one query. Every terminal outcome
// (accepted, warned, blocked) produces exactly one audit record before the
// answer is returned. Retrieval or completion failures fail closed: an error
// is returned and no answer is released.
func (e *Engine) Answer(ctx context.Context, q Query) (*Answer, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	rules := e.loadRules(ctx)
	checks := make(map[string]bool)

	candidates, err := e.retriever.Retrieve(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("retrieving sources: %w", err)
	}

	// Gate 1: source sufficiency. Blocking here skips the model call
	// entirely; there is nothing to answer from.
	if len(candidates) < rules.MinSources {
		checks["source_sufficiency"] = false
		answer := &Answer{
			Response:           fallbackInsufficientSources,
			Blocked:            true,
			Sources:            buildSources(candidates, nil),
			Reason:             ReasonInsufficientSources,
			GuardrailTriggered: ReasonInsufficientSources,
			SuggestAgent:       true,
		}
		e.record(ctx, q, answer, "", checks, candidates, nil, false, start)
		return answer, nil
	}
	checks["source_sufficiency"] = true

	// Gate 2: constrained generation over the numbered source blocks.
	response, err := e.completer.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(BuildContext(candidates), q.Text),
		MaxTokens:   rules.MaxResponseTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	// Gate 3: citation verification. A response with no markers at all is
	// treated as unsupported content. This is a proxy signal, not a
	// semantic check of the claims themselves.
	scan := ScanCitations(response, len(candidates))
	if rules.CitationRequired && scan.Markers == 0 {
		checks["citations"] = false
		answer := &Answer{
			Response:           fallbackNoCitations,
			Blocked:            true,
			Sources:            buildSources(candidates, nil),
			Reason:             ReasonNoCitations,
			GuardrailTriggered: ReasonNoCitations,
			SuggestAgent:       true,
		}
		e.record(ctx, q, answer, response, checks, candidates, nil, true, start)
		return answer, nil
	}
	checks["citations"] = true

	// Gate 4: confidence scoring.
	weights := Weights{
		Similarity:      e.defaults.SimilarityWeight,
		Citation:        e.defaults.CitationWeight,
		Quality:         e.defaults.QualityWeight,
		QualityMinChars: e.defaults.QualityMinChars,
		QualityMaxChars: e.defaults.QualityMaxChars,
	}
	confidence := weights.Score(
		AvgSimilarity(candidates),
		Coverage(len(scan.Cited), len(candidates)),
		weights.QualityFactor(len(response)),
	)

	if confidence < rules.ConfidenceThreshold {
		checks["confidence"] = false

		if rules.BlockOnUnsupported {
			answer := &Answer{
				Response:           fallbackLowConfidence,
				Blocked:            true,
				Confidence:         confidence,
				Sources:            buildSources(candidates, scan.Cited),
				Reason:             ReasonLowConfidence,
				GuardrailTriggered: ReasonLowConfidence,
				SuggestAgent:       true,
			}
			e.record(ctx, q, answer, response, checks, candidates, scan.Cited, false, start)
			return answer, nil
		}

		answer := &Answer{
			Response:           response + "\n\n" + lowConfidenceDisclaimer,
			Confidence:         confidence,
			Sources:            buildSources(candidates, scan.Cited),
			Reason:             ReasonLowConfidence,
			GuardrailTriggered: ReasonLowConfidence,
		}
		e.record(ctx, q, answer, response, checks, candidates, scan.Cited, false, start)
		return answer, nil
	}
	checks["confidence"] = true

	answer := &Answer{
		Response:   response,
		Confidence: confidence,
		Sources:    buildSources(candidates, scan.Cited),
	}
	e.record(ctx, q, answer, response, checks, candidates, scan.Cited, false, start)
	return answer, nil
}

// loadRules resolves the effective policy for this query. A failed load
// falls back to the configured defaults; answering must not depend on the
// override table being readable.
func (e *Engine) loadRules(ctx context.Context) Rules {
	var rows []RuleRow
	if e.rules != nil {
		var err error
		rows, err = e.rules.Load(ctx)
		if err != nil {
			e.logger.Warn("loading guardrail overrides failed, using defaults", "error", err)
			rows = nil
		}
	}
	return Resolve(e.defaults, rows, e.logger)
}

func (e *Engine) record(ctx context.Context, q Query, a *Answer, modelResponse string, checks map[string]bool, candidates []corpus.Candidate, cited map[int]bool, hallucination bool, start time.Time) {
	verdict := VerdictAccept
	switch {
	case a.Blocked:
		verdict = VerdictBlock
	case a.Reason != "":
		verdict = VerdictWarn
	}

	fallback := ""
	if a.Blocked {
		fallback = a.Response
	}

	refs := make([]auditlog.SourceRef, len(candidates))
	for i, c := range candidates {
		refs[i] = auditlog.SourceRef{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			SectionTitle:  c.SectionTitle,
			PageNumber:    c.PageNumber,
			Similarity:    c.Similarity,
			Cited:         cited[i+1],
		}
	}

	e.recorder.Record(ctx, auditlog.Entry{
		SessionID:             q.SessionID,
		UserID:                q.UserID,
		Query:                 q.Text,
		Response:              modelResponse,
		Verdict:               verdict,
		Reason:                a.Reason,
		Checks:                checks,
		Sources:               refs,
		Confidence:            a.Confidence,
		HallucinationDetected: hallucination,
		Blocked:               a.Blocked,
		FallbackMessage:       fallback,
		Latency:               time.Since(start),
	})
}

// buildSources converts candidates to client-facing sources with per-source
// cited flags and truncated content previews.
func buildSources(candidates []corpus.Candidate, cited map[int]bool) []Source {
	sources := make([]Source, len(candidates))
	for i, c := range candidates {
		sources[i] = Source{
			Index:         i + 1,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			SectionTitle:  c.SectionTitle,
			Content:       preview(c.Content),
			PageNumber:    c.PageNumber,
			Similarity:    c.Similarity,
			Cited:         cited[i+1],
		}
	}
	return sources
}
