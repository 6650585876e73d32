// Package app wires the sourcedesk components together.
//
// Setup is the single composition root: it runs migrations, opens the
// database pool, initializes Genkit with the configured AI provider, and
// assembles the guardrail engine and ingestion pipeline from their parts.
// Commands in cmd/ consume the assembled App and never construct
// components directly.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sourcedesk/sourcedesk/internal/auditlog"
	"github.com/sourcedesk/sourcedesk/internal/blob"
	"github.com/sourcedesk/sourcedesk/internal/config"
	"github.com/sourcedesk/sourcedesk/internal/corpus"
	"github.com/sourcedesk/sourcedesk/internal/database"
	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/embed"
	"github.com/sourcedesk/sourcedesk/internal/guardrail"
	"github.com/sourcedesk/sourcedesk/internal/ingest"
	"github.com/sourcedesk/sourcedesk/internal/log"
	"github.com/sourcedesk/sourcedesk/internal/observability"
)

// App holds the assembled components. Fields are exported so commands can
// pick the subset they need: serve wants the engine and pipeline, ingest
// only the pipeline and document store.
type App struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Genkit    *genkit.Genkit
	Engine    *guardrail.Engine
	Pipeline  *ingest.Pipeline
	Documents *document.Store
	Blobs     *blob.FS
	Logger    log.Logger

	traceShutdown func(context.Context) error
}

// Setup builds the full application from configuration. On any failure the
// partially constructed resources are released before the error is returned.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	cleanup := func() {}
	fail := func(err error) (*App, error) {
		cleanup()
		return nil, err
	}

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return fail(fmt.Errorf("running migrations: %w", err))
	}

	pool, err := database.Open(ctx, cfg.PostgresURL())
	if err != nil {
		return fail(fmt.Errorf("opening database: %w", err))
	}
	cleanup = func() { pool.Close() }

	blobs, err := blob.NewFS(cfg.BlobDir)
	if err != nil {
		return fail(fmt.Errorf("opening blob store: %w", err))
	}
	prev := cleanup
	cleanup = func() { _ = blobs.Close(); prev() }

	// Tracing must be registered before genkit.Init picks up the provider.
	traceShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: "sourcedesk",
	})
	if err != nil {
		return fail(fmt.Errorf("setting up tracing: %w", err))
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	embedClient := embed.NewClient(provideEmbedder(g, cfg), 0,
		logger.With("component", "embed"))
	completer := guardrail.NewGenkitCompleter(g, cfg.ModelName, 0)

	documents := document.NewStore(pool, logger.With("component", "documents"))
	searcher := corpus.NewStore(pool, logger.With("component", "corpus"))
	retriever := corpus.NewRetriever(searcher, embedClient, corpus.Params{
		MatchThreshold: cfg.Guardrail.MatchThreshold,
		MatchCount:     cfg.Guardrail.MatchCount,
	}, logger.With("component", "retriever"))

	engine := guardrail.NewEngine(
		retriever,
		completer,
		guardrail.NewConfigStore(pool, logger.With("component", "guardrail_config")),
		auditlog.NewStore(pool, logger.With("component", "auditlog")),
		cfg.Guardrail,
		float64(cfg.Temperature),
		logger.With("component", "guardrail"),
	)

	pipeline := ingest.New(documents, blobs, embedClient, ingest.Options{
		ChunkMaxChars:     cfg.Ingest.ChunkMaxChars,
		ChunkOverlapChars: cfg.Ingest.ChunkOverlapChars,
		MinTextLength:     cfg.Ingest.MinTextLength,
		EmbedRatePerSec:   cfg.Ingest.EmbedRatePerSec,
		EmbedBurst:        cfg.Ingest.EmbedBurst,
	}, logger.With("component", "ingest"))

	return &App{
		Config:    cfg,
		Pool:      pool,
		Genkit:    g,
		Engine:    engine,
		Pipeline:  pipeline,
		Documents: documents,
		Blobs:     blobs,
		Logger:    logger,

		traceShutdown: traceShutdown,
	}, nil
}

// Close releases the resources held by the App. Safe to call once after a
// successful Setup.
func (a *App) Close() {
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.traceShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
		cancel()
	}
	if a.Blobs != nil {
		if err := a.Blobs.Close(); err != nil {
			a.Logger.Warn("closing blob store", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Gemini is the default; Ollama supports fully local deployments.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case "ollama":
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; models and embedders must be
		// registered explicitly.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		return g, nil

	case "", "gemini":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// The ollama embedder is keyed by server address, gemini by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == "ollama" {
		return ollama.Embedder(g, cfg.OllamaHost)
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
