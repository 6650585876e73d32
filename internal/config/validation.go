package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate performs comprehensive range checks on the configuration.
// It returns a sentinel error (wrapped with detail) on the first violation,
// so callers can use errors.Is() to classify the failure.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: must be in [0, 2], got %v", ErrInvalidTemperature, c.Temperature)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be in [1, 65535], got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	if err := c.Ingest.validate(); err != nil {
		return err
	}
	return c.Guardrail.validate()
}

func (ic IngestConfig) validate() error {
	if ic.ChunkMaxChars <= 0 {
		return fmt.Errorf("%w: chunk_max_chars must be positive, got %d", ErrInvalidChunkSize, ic.ChunkMaxChars)
	}
	if ic.ChunkOverlapChars < 0 || ic.ChunkOverlapChars >= ic.ChunkMaxChars {
		return fmt.Errorf("%w: chunk_overlap_chars must be in [0, chunk_max_chars), got %d",
			ErrInvalidChunkSize, ic.ChunkOverlapChars)
	}
	if ic.MinTextLength < 0 {
		return fmt.Errorf("%w: min_text_length must not be negative, got %d", ErrInvalidChunkSize, ic.MinTextLength)
	}
	if ic.EmbedRatePerSec <= 0 {
		return fmt.Errorf("%w: embed_rate_per_sec must be positive, got %v", ErrInvalidEmbedRate, ic.EmbedRatePerSec)
	}
	if ic.EmbedBurst < 1 {
		return fmt.Errorf("%w: embed_burst must be at least 1, got %d", ErrInvalidEmbedRate, ic.EmbedBurst)
	}
	return nil
}

func (g GuardrailDefaults) validate() error {
	if g.ConfidenceThreshold < 0 || g.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [0, 1], got %v",
			ErrInvalidGuardrail, g.ConfidenceThreshold)
	}
	if g.MinSources < 0 {
		return fmt.Errorf("%w: min_sources must not be negative, got %d", ErrInvalidGuardrail, g.MinSources)
	}
	if g.MaxResponseTokens < 1 {
		return fmt.Errorf("%w: max_response_tokens must be positive, got %d",
			ErrInvalidGuardrail, g.MaxResponseTokens)
	}
	if g.MatchThreshold < 0 || g.MatchThreshold >= 1 {
		return fmt.Errorf("%w: match_threshold must be in [0, 1), got %v",
			ErrInvalidGuardrail, g.MatchThreshold)
	}
	if g.MatchCount < 1 {
		return fmt.Errorf("%w: match_count must be positive, got %d", ErrInvalidGuardrail, g.MatchCount)
	}

	sum := g.SimilarityWeight + g.CitationWeight + g.QualityWeight
	if g.SimilarityWeight < 0 || g.CitationWeight < 0 || g.QualityWeight < 0 ||
		math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: confidence weights must be non-negative and sum to 1, got %v/%v/%v",
			ErrInvalidGuardrail, g.SimilarityWeight, g.CitationWeight, g.QualityWeight)
	}

	if g.QualityMinChars < 0 || g.QualityMaxChars <= g.QualityMinChars {
		return fmt.Errorf("%w: quality bounds must satisfy 0 <= min < max, got (%d, %d)",
			ErrInvalidGuardrail, g.QualityMinChars, g.QualityMaxChars)
	}

	return nil
}
