// Package guardrail decides whether a generated answer may be released.
//
// A query passes through ordered gates: source sufficiency, generation,
// citation verification, and confidence scoring. The first failing gate
// blocks the answer with a reason code and a user-safe fallback message.
package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sourcedesk/sourcedesk/internal/config"
)

// Rule names recognized in the guardrail_config table.
const (
	RuleConfidenceThreshold = "confidence_threshold"
	RuleMinSources          = "min_sources"
	RuleCitationRequired    = "citation_required"
	RuleMaxResponseTokens   = "max_response_tokens"
	RuleBlockOnUnsupported  = "block_on_unsupported"
)

// RuleValue is the tagged variant stored in the value column. Kind selects
// which field is meaningful: "number" reads Number, "flag" reads Flag.
type RuleValue struct {
	Kind   string  `json:"kind"`
	Number float64 `json:"value,omitempty"`
	Flag   bool    `json:"-"`
}

// UnmarshalJSON decodes {"kind":"number","value":0.7} and
// {"kind":"flag","value":true} forms.
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Kind = raw.Kind

	switch raw.Kind {
	case "number":
		return json.Unmarshal(raw.Value, &v.Number)
	case "flag":
		return json.Unmarshal(raw.Value, &v.Flag)
	default:
		return fmt.Errorf("unknown rule value kind: %q", raw.Kind)
	}
}

// MarshalJSON encodes the tagged variant form.
func (v RuleValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case "number":
		return json.Marshal(struct {
			Kind  string  `json:"kind"`
			Value float64 `json:"value"`
		}{v.Kind, v.Number})
	case "flag":
		return json.Marshal(struct {
			Kind  string `json:"kind"`
			Value bool   `json:"value"`
		}{v.Kind, v.Flag})
	default:
		return nil, fmt.Errorf("unknown rule value kind: %q", v.Kind)
	}
}

// RuleRow is one stored rule override.
type RuleRow struct {
	Name    string
	Value   RuleValue
	Enabled bool
}

// Rules is the resolved policy for a single query. It is built once at
// request start and never mutated, so concurrent queries each see a stable
// policy even while an admin updates the stored overrides.
type Rules struct {
	ConfidenceThreshold float64
	MinSources          int
	CitationRequired    bool
	MaxResponseTokens   int
	BlockOnUnsupported  bool
}

// Resolve layers enabled stored overrides on top of configured defaults.
// Unknown rule names and kind mismatches are skipped with a warning; a bad
// row must not take the whole query down.
func Resolve(defaults config.GuardrailDefaults, rows []RuleRow, logger *slog.Logger) Rules {
	if logger == nil {
		logger = slog.Default()
	}

	rules := Rules{
		ConfidenceThreshold: defaults.ConfidenceThreshold,
		MinSources:          defaults.MinSources,
		CitationRequired:    defaults.CitationRequired,
		MaxResponseTokens:   defaults.MaxResponseTokens,
		BlockOnUnsupported:  defaults.BlockOnUnsupported,
	}

	for _, row := range rows {
		if !row.Enabled {
			continue
		}

		ok := true
		switch row.Name {
		case RuleConfidenceThreshold:
			if ok = row.Value.Kind == "number"; ok {
				rules.ConfidenceThreshold = row.Value.Number
			}
		case RuleMinSources:
			if ok = row.Value.Kind == "number"; ok {
				rules.MinSources = int(row.Value.Number)
			}
		case RuleCitationRequired:
			if ok = row.Value.Kind == "flag"; ok {
				rules.CitationRequired = row.Value.Flag
			}
		case RuleMaxResponseTokens:
			if ok = row.Value.Kind == "number"; ok {
				rules.MaxResponseTokens = int(row.Value.Number)
			}
		case RuleBlockOnUnsupported:
			if ok = row.Value.Kind == "flag"; ok {
				rules.BlockOnUnsupported = row.Value.Flag
			}
		default:
			logger.Warn("ignoring unknown guardrail rule", "rule", row.Name)
			continue
		}

		if !ok {
			logger.Warn("ignoring guardrail rule with mismatched value kind",
				"rule", row.Name, "kind", row.Value.Kind)
		}
	}

	return rules
}

// ConfigStore loads stored rule overrides from the guardrail_config table.
type ConfigStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConfigStore creates a ConfigStore. A nil logger selects slog.Default().
func NewConfigStore(pool *pgxpool.Pool, logger *slog.Logger) *ConfigStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigStore{pool: pool, logger: logger}
}

// Load returns all stored rule rows. Rows whose value column fails to decode
// are skipped with a warning.
func (s *ConfigStore) Load(ctx context.Context) ([]RuleRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rule_name, value, enabled FROM guardrail_config ORDER BY rule_name`)
	if err != nil {
		return nil, fmt.Errorf("loading guardrail config: %w", err)
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		var (
			row RuleRow
			raw []byte
		)
		if err := rows.Scan(&row.Name, &raw, &row.Enabled); err != nil {
			return nil, fmt.Errorf("scanning guardrail rule: %w", err)
		}
		if err := json.Unmarshal(raw, &row.Value); err != nil {
			s.logger.Warn("skipping undecodable guardrail rule", "rule", row.Name, "error", err)
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading guardrail config: %w", err)
	}

	return out, nil
}
