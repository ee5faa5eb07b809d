package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

// app owns the process-wide collaborators. They are built on first use from
// the persistent flags and closed once on exit.
type app struct {
	resolver *internal.ScopeResolver
	getenv   func(string) string

	// set by tests to bypass network backends
	embedder  internal.Embedder
	generator internal.Generator

	cfg      *internal.Config
	scope    internal.Scope
	logger   *slog.Logger
	pipeline *internal.Pipeline
	closers  []io.Closer
}

func newApp() *app {
	return &app{
		resolver: internal.NewScopeResolver(),
		getenv:   os.Getenv,
	}
}

// Config loads the configuration selected by --scope and --config, with
// environment overrides applied.
func (a *app) Config(cmd *cobra.Command) (*internal.Config, internal.Scope, error) {
	if a.cfg != nil {
		return a.cfg, a.scope, nil
	}

	scopeHint, _ := cmd.Flags().GetString("scope")
	configPath, _ := cmd.Flags().GetString("config")

	scope := a.resolver.Resolve(scopeHint)
	if configPath == "" {
		configPath = scope.ConfigPath()
	}

	cfg, err := internal.LoadConfigFile(configPath)
	if err != nil {
		return nil, scope, err
	}
	cfg.ApplyEnv(a.getenv)
	if err := cfg.Validate(); err != nil {
		return nil, scope, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = scope.IndexPath()
	}

	a.cfg, a.scope = cfg, scope
	return cfg, scope, nil
}

func (a *app) Logger(cmd *cobra.Command) *slog.Logger {
	if a.logger == nil {
		level, _ := cmd.Flags().GetString("log-level")
		asJSON, _ := cmd.Flags().GetBool("json")
		a.logger = newLogger(cmd.ErrOrStderr(), level, asJSON)
	}
	return a.logger
}

func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Pipeline builds the embedder, index and generator named by the config.
func (a *app) Pipeline(cmd *cobra.Command) (*internal.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}

	cfg, _, err := a.Config(cmd)
	if err != nil {
		return nil, err
	}
	logger := a.Logger(cmd)
	ctx := cmd.Context()

	embedder := a.embedder
	if embedder == nil {
		if embedder, err = buildEmbedder(ctx, cfg.Embeddings); err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		a.closers = append(a.closers, embedder)
	}

	generator := a.generator
	if generator == nil {
		if generator, err = buildGenerator(ctx, cfg.Generation); err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
	}

	// Opened last: nothing after it can fail and leave the file locked.
	index, err := buildIndex(ctx, cfg.Index, embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	a.closers = append(a.closers, index)

	a.pipeline = internal.NewPipeline(
		embedder,
		index,
		internal.NewGuardrail(cfg.Guardrail.ForbiddenTerms...),
		internal.NewContextAssembler(cfg.Retrieval.MaxContextChars),
		internal.NewGenerationClient(generator,
			internal.WithTimeout(cfg.Generation.Timeout),
			internal.WithRetries(cfg.Generation.Retries),
			internal.WithGenerationLogger(logger),
		),
		internal.NewSanitizer(),
		cfg.Retrieval.TopK,
		logger,
	)

	logger.Debug("pipeline ready",
		"index", cfg.Index.Backend,
		"embedder", embedder.Model(),
		"dimension", embedder.Dimension(),
		"provider", cfg.Generation.Provider,
		"model", cfg.Generation.Model,
	)
	return a.pipeline, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	a.pipeline = nil
	return errors.Join(errs...)
}

func buildEmbedder(ctx context.Context, cfg internal.EmbeddingsConfig) (internal.Embedder, error) {
	switch cfg.Backend {
	case internal.EmbedderHash:
		return internal.NewHashEmbedder(cfg.Dimension), nil
	case internal.EmbedderOllama:
		client, err := internal.NewOllamaClient(cfg.BaseURL, 0)
		if err != nil {
			return nil, err
		}
		e, err := internal.NewOllamaEmbedder(ctx, client, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		return internal.NewCachedEmbedder(e, cfg.CacheSize), nil
	default:
		return nil, fmt.Errorf("unknown embeddings backend %q", cfg.Backend)
	}
}

func buildIndex(ctx context.Context, cfg internal.IndexConfig, dimension int) (internal.VectorIndex, error) {
	switch cfg.Backend {
	case internal.BackendBolt:
		return internal.OpenBoltIndex(cfg.Path, dimension)
	case internal.BackendQdrant:
		return internal.NewQdrantIndex(ctx, cfg.Qdrant, dimension)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

func buildGenerator(ctx context.Context, cfg internal.GenerationConfig) (internal.Generator, error) {
	if cfg.Provider == internal.ProviderOllama {
		client, err := internal.NewOllamaClient(cfg.BaseURL, 0)
		if err != nil {
			return nil, err
		}
		return internal.NewOllamaGenerator(client, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
	}

	return internal.NewFantasyGenerator(ctx, internal.FantasyConfig{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	})
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
