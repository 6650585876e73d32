// Package cmd implements the sourcedesk CLI.
//
// Commands:
//   - serve:   run the HTTP API (chat, ingest, documents, health)
//   - ingest:  register a local file and process it into the corpus
//   - version: print build information
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourcedesk/sourcedesk/internal/config"
	"github.com/sourcedesk/sourcedesk/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "sourcedesk",
	Short: "Source-grounded document Q&A service",
	Long: `sourcedesk answers questions strictly from an ingested document corpus.

Every answer is retrieved from uploaded sources, cited back to them, and
checked by a guardrail pipeline before it reaches the user. Answers the
corpus cannot support are blocked rather than guessed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false,
		"emit logs as JSON")
}

// loadConfig builds the logger from flags and loads configuration from
// file and environment. Shared by all commands that need the app.
func loadConfig() (*config.Config, log.Logger, error) {
	logger := log.New(log.Config{
		Level: parseLevel(flagLogLevel),
		JSON:  flagLogJSON,
	})
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
