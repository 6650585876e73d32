// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sourcedesk/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model selection, embedder model, temperature, token budget
//   - Storage: PostgreSQL connection, blob directory
//   - Ingestion: chunk sizing, embedding rate limit
//   - Guardrail: default policy values (threshold, weights, source minimums)
//
// Security: passwords are never logged. Validation is fail-fast with sentinel
// errors so callers can use errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidChunkSize indicates the chunk size settings are inconsistent.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidEmbedRate indicates the embedding rate limit is invalid.
	ErrInvalidEmbedRate = errors.New("invalid embedding rate limit")

	// ErrInvalidGuardrail indicates a guardrail default is out of range.
	ErrInvalidGuardrail = errors.New("invalid guardrail setting")
)

// GuardrailDefaults holds the default guardrail policy values.
// They apply when the guardrail_config table has no enabled override for a rule.
// The weights and quality bounds are hand-tuned constants with no documented
// derivation; they are kept configurable rather than hardcoded.
type GuardrailDefaults struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	MinSources          int     `mapstructure:"min_sources" json:"min_sources"`
	CitationRequired    bool    `mapstructure:"citation_required" json:"citation_required"`
	MaxResponseTokens   int     `mapstructure:"max_response_tokens" json:"max_response_tokens"`
	BlockOnUnsupported  bool    `mapstructure:"block_on_unsupported" json:"block_on_unsupported"`

	// Retrieval parameters
	MatchThreshold float64 `mapstructure:"match_threshold" json:"match_threshold"`
	MatchCount     int     `mapstructure:"match_count" json:"match_count"`

	// Confidence formula weights (similarity / citation coverage / quality)
	SimilarityWeight float64 `mapstructure:"similarity_weight" json:"similarity_weight"`
	CitationWeight   float64 `mapstructure:"citation_weight" json:"citation_weight"`
	QualityWeight    float64 `mapstructure:"quality_weight" json:"quality_weight"`

	// Response quality bounds in characters (exclusive)
	QualityMinChars int `mapstructure:"quality_min_chars" json:"quality_min_chars"`
	QualityMaxChars int `mapstructure:"quality_max_chars" json:"quality_max_chars"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	ChunkMaxChars     int `mapstructure:"chunk_max_chars" json:"chunk_max_chars"`
	ChunkOverlapChars int `mapstructure:"chunk_overlap_chars" json:"chunk_overlap_chars"`

	// MinTextLength is the minimum extracted text length; shorter results are
	// rejected as extraction failures (guards against corrupt/empty files).
	MinTextLength int `mapstructure:"min_text_length" json:"min_text_length"`

	// EmbedRatePerSec / EmbedBurst size the token-bucket limiter for the
	// embedding service. Keep sustained throughput under the service's
	// published rate limit.
	EmbedRatePerSec float64 `mapstructure:"embed_rate_per_sec" json:"embed_rate_per_sec"`
	EmbedBurst      int     `mapstructure:"embed_burst" json:"embed_burst"`
}

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`       // "gemini" (default) or "ollama"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`   // e.g. "gemini-2.5-flash"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"` // low by default: accuracy over creativity
	OllamaHost    string  `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// BlobDir is the directory for raw uploaded files.
	BlobDir string `mapstructure:"blob_dir" json:"blob_dir"`

	// Ingestion configuration
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Guardrail defaults
	Guardrail GuardrailDefaults `mapstructure:"guardrail" json:"guardrail"`

	// API server configuration
	ListenAddr string  `mapstructure:"listen_addr" json:"listen_addr"`
	RatePerSec float64 `mapstructure:"rate_per_sec" json:"rate_per_sec"` // per-IP request rate
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Trace export. Empty endpoint disables tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sourcedesk")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual PostgreSQL settings when set
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", "gemini")
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "sourcedesk")
	v.SetDefault("postgres_password", "sourcedesk_dev_password")
	v.SetDefault("postgres_db_name", "sourcedesk")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Blob storage
	v.SetDefault("blob_dir", filepath.Join("data", "blobs"))

	// Ingestion defaults
	v.SetDefault("ingest.chunk_max_chars", 2000)
	v.SetDefault("ingest.chunk_overlap_chars", 200)
	v.SetDefault("ingest.min_text_length", 50)
	v.SetDefault("ingest.embed_rate_per_sec", 5.0)
	v.SetDefault("ingest.embed_burst", 10)

	// Guardrail defaults
	v.SetDefault("guardrail.confidence_threshold", 0.7)
	v.SetDefault("guardrail.min_sources", 1)
	v.SetDefault("guardrail.citation_required", true)
	v.SetDefault("guardrail.max_response_tokens", 1024)
	v.SetDefault("guardrail.block_on_unsupported", false)
	v.SetDefault("guardrail.match_threshold", 0.5)
	v.SetDefault("guardrail.match_count", 5)
	v.SetDefault("guardrail.similarity_weight", 0.5)
	v.SetDefault("guardrail.citation_weight", 0.3)
	v.SetDefault("guardrail.quality_weight", 0.2)
	v.SetDefault("guardrail.quality_min_chars", 50)
	v.SetDefault("guardrail.quality_max_chars", 3000)

	// API defaults
	v.SetDefault("listen_addr", "127.0.0.1:3500")
	v.SetDefault("rate_per_sec", 5.0)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("trust_proxy", false)

	// Tracing defaults
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("environment", "development")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence is
// the provider's concern and is validated at startup by the plugin.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SOURCEDESK_PROVIDER")
	mustBind("model_name", "SOURCEDESK_MODEL_NAME")
	mustBind("embedder_model", "SOURCEDESK_EMBEDDER_MODEL")
	mustBind("ollama_host", "SOURCEDESK_OLLAMA_HOST")
	mustBind("listen_addr", "SOURCEDESK_LISTEN_ADDR")
	mustBind("blob_dir", "SOURCEDESK_BLOB_DIR")
	mustBind("trust_proxy", "SOURCEDESK_TRUST_PROXY")
	mustBind("postgres_password", "SOURCEDESK_POSTGRES_PASSWORD")
	mustBind("otlp_endpoint", "SOURCEDESK_OTLP_ENDPOINT")
	mustBind("environment", "SOURCEDESK_ENVIRONMENT")
}

// parseDatabaseURL overrides PostgreSQL settings from a postgres:// URL.
// Empty input is a no-op.
func (c *Config) parseDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if h := u.Hostname(); h != "" {
		c.PostgresHost = h
	}
	if p := u.Port(); p != "" {
		var port int
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return fmt.Errorf("parsing port %q: %w", p, err)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "" && db != "/" && db != "." {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}

// PostgresURL returns the connection string in URL form, suitable for both
// pgxpool and golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
