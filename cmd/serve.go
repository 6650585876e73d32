package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sourcedesk/sourcedesk/api"
	"github.com/sourcedesk/sourcedesk/internal/app"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "addr", "",
		"listen address (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.ListenAddr
	if flagListenAddr != "" {
		addr = flagListenAddr
	}

	srv := api.NewServer(api.ServerConfig{
		Engine:     a.Engine,
		Pipeline:   a.Pipeline,
		Documents:  a.Documents,
		Pool:       a.Pool,
		Logger:     logger.With("component", "api"),
		RatePerSec: cfg.RatePerSec,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	})
	return srv.Run(ctx, addr)
}
