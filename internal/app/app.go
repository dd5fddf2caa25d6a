// Package app is the composition root: it turns a Config into a running
// engine with every optional collaborator resolved once.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/lattice-memory/internal/chunker"
	"github.com/rcliao/lattice-memory/internal/config"
	"github.com/rcliao/lattice-memory/internal/crawler"
	"github.com/rcliao/lattice-memory/internal/embedding"
	"github.com/rcliao/lattice-memory/internal/engine"
	"github.com/rcliao/lattice-memory/internal/facts"
	"github.com/rcliao/lattice-memory/internal/governor"
	"github.com/rcliao/lattice-memory/internal/hydrator"
	"github.com/rcliao/lattice-memory/internal/intent"
	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/llm/anthropic"
	"github.com/rcliao/lattice-memory/internal/llm/openai"
	"github.com/rcliao/lattice-memory/internal/maintenance"
	"github.com/rcliao/lattice-memory/internal/metrics"
	"github.com/rcliao/lattice-memory/internal/store"
	"github.com/rcliao/lattice-memory/internal/synthesis"
	"github.com/rcliao/lattice-memory/internal/tokenizer"
	"github.com/rcliao/lattice-memory/internal/vecindex"
	"github.com/rcliao/lattice-memory/internal/window"
)

// ErrNoProvider is returned by Build when chat needs a completion provider
// and none is configured.
var ErrNoProvider = errors.New("no completion provider configured (set llm.provider or ANTHROPIC_API_KEY / OPENAI_API_KEY)")

// App holds everything Build wired together.
type App struct {
	Config    *config.Config
	Store     *store.SQLiteStore
	Index     store.NodeIndex
	Embedder  embedding.Embedder
	Completer llm.Completer
	Reasoner  llm.Completer
	Crawler   *crawler.Crawler
	Indexer   engine.Indexer
	Governor  *governor.Governor
	Worker    *synthesis.Worker
	Window    *window.Window
	Engine    *engine.Engine
	Scheduler *maintenance.Scheduler
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Options adjust Build.
type Options struct {
	// Completer overrides the configured provider.
	Completer llm.Completer
	// Offline builds everything except the completion provider. The engine
	// is then nil; retrieval, stats and profile access still work.
	Offline bool
	// StartScheduler starts the maintenance jobs when enabled in config.
	StartScheduler bool
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewCompleter builds the provider named in cfg. Provider "none" returns
// nil without error.
func NewCompleter(cfg config.LLMConfig, model string, maxTokens int) (llm.Completer, error) {
	var c llm.Completer
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		p, err := openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: model, MaxTokens: maxTokens})
		if err != nil {
			return nil, err
		}
		c = p
	case "anthropic":
		p, err := anthropic.New(anthropic.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: model, MaxTokens: maxTokens})
		if err != nil {
			return nil, err
		}
		c = p
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return llm.WithTimeout(c, cfg.Timeout), nil
}

// Build opens the store and wires the engine. Close releases everything.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Metrics: opts.Metrics, Logger: logger}

	a.Store, err = store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err != nil {
			a.Store.Close()
		}
	}()

	a.Embedder, err = embedding.New(embedding.Options{
		Provider:     cfg.Embedding.Provider,
		Model:        cfg.Embedding.Model,
		BaseURL:      cfg.Embedding.BaseURL,
		APIKey:       cfg.Embedding.APIKey,
		Dims:         cfg.Embedding.Dims,
		CacheEntries: cfg.Embedding.CacheEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if a.Embedder == nil {
		logger.Warn("embeddings disabled, retrieval is recency-only")
	}

	a.Index = a.Store
	if strings.EqualFold(cfg.Retrieval.VectorBackend, "chromem") {
		search, err := vecindex.NewChromem(cfg.VectorsDir(), a.Store)
		if err != nil {
			return nil, err
		}
		a.Index = &vecindex.Mirrored{Durable: a.Store, Search: search}
	}

	if !opts.Offline {
		a.Completer = opts.Completer
		if a.Completer == nil {
			a.Completer, err = NewCompleter(cfg.LLM, cfg.LLM.Model, cfg.Context.MaxResponseTokens)
			if err != nil {
				return nil, fmt.Errorf("completion provider: %w", err)
			}
		}
		if a.Completer == nil {
			return nil, ErrNoProvider
		}
	}
	if cfg.LLM.Reasoning {
		a.Reasoner, err = NewCompleter(cfg.LLM, reasoningModel(cfg.LLM), 400)
		if err != nil {
			logger.Warn("reasoning service unavailable, running offline", "err", err)
			a.Reasoner = nil
			err = nil
		}
	}
	if a.Reasoner == nil {
		logger.Info("reasoning offline: heuristic intents, no fact extraction, verbatim profile compaction")
	}

	counter := tokenizer.New(cfg.Context.Tokenizer, logger)
	chunking := chunker.Options{
		TargetSize: cfg.Chunking.Target,
		Overlap:    cfg.Chunking.Overlap,
		MaxSize:    chunker.DefaultMaxSize,
	}
	a.Indexer = engine.Indexer{Embedder: a.Embedder, Index: a.Index, Chunking: chunking}

	a.Crawler, err = crawler.New(a.Index, a.Embedder, crawler.Config{
		RecencyWeight: cfg.Retrieval.RecencyWeight,
		DecayPerDay:   cfg.Retrieval.DecayPerDay,
	}, crawler.WithLogger(logger), crawler.WithMetrics(a.Metrics))
	if err != nil {
		return nil, err
	}

	gcfg := governor.DefaultConfig()
	gcfg.MinConfidence = cfg.Retrieval.MinConfidence
	gcfg.AvgNodeTokens = cfg.Retrieval.AvgNodeTokens
	a.Governor, err = governor.New(gcfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := intent.New(cfg.Retrieval.IntentMode, a.Reasoner, logger)
	if err != nil {
		return nil, err
	}

	profiles, err := synthesis.NewFileStore(cfg.ProfilePath())
	if err != nil {
		return nil, err
	}
	var summarizer synthesis.Summarizer
	if a.Reasoner != nil {
		summarizer = synthesis.NewLLMSummarizer(a.Reasoner)
	}
	a.Worker, err = synthesis.NewWorker(ctx, synthesis.WorkerConfig{
		Extractor: facts.New(a.Reasoner),
		FactLog:   a.Store,
		Manager: synthesis.NewManager(synthesis.ManagerConfig{
			Counter:     counter,
			Summarizer:  summarizer,
			TokenBudget: cfg.Profile.TokenBudget,
			Logger:      logger,
		}),
		Store:     profiles,
		QueueSize: cfg.Profile.QueueSize,
		Logger:    logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	a.Window, err = window.Restore(ctx, cfg.WindowPath(), cfg.Window.Capacity, a.Store, logger)
	if err != nil {
		a.Worker.Close(ctx)
		return nil, err
	}

	if a.Completer == nil {
		return a, nil
	}

	a.Engine, err = engine.New(engine.Config{
		ContextBudget:     cfg.Context.Budget,
		MaxResponseTokens: cfg.Context.MaxResponseTokens,
		SystemPrompt:      cfg.Context.SystemPrompt,
		Chunking:          chunking,
		WindowPath:        cfg.WindowPath(),
		DBPath:            cfg.DBPath(),
	}, engine.Deps{
		Turns:     a.Store,
		Index:     a.Index,
		Embedder:  a.Embedder,
		Completer: a.Completer,
		Reasoner:  a.Reasoner,
		Analyzer:  analyzer,
		Governor:  a.Governor,
		Crawler:   a.Crawler,
		Hydrator:  hydrator.New(counter),
		Counter:   counter,
		Window:    a.Window,
		Worker:    a.Worker,
		Metrics:   a.Metrics,
		Logger:    logger,
	})
	if err != nil {
		a.Worker.Close(ctx)
		return nil, err
	}

	if opts.StartScheduler && cfg.Maintenance.Enabled {
		a.Scheduler = maintenance.NewScheduler(logger, a.Metrics)
		_ = a.Scheduler.Register(maintenance.WindowSnapshot(cfg.Maintenance.SnapshotSchedule, a.Engine))
		_ = a.Scheduler.Register(maintenance.ProfileCompaction(cfg.Maintenance.CompactSchedule, a.Worker))
		if err = a.Scheduler.Start(); err != nil {
			a.Worker.Close(ctx)
			return nil, err
		}
	}
	return a, nil
}

func reasoningModel(cfg config.LLMConfig) string {
	if cfg.ReasoningModel != "" {
		return cfg.ReasoningModel
	}
	return cfg.Model
}

// Close stops the scheduler, then closes the engine (window snapshot,
// synthesis drain, store) or, offline, the worker and store.
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if c, ok := a.Embedder.(interface{ Close() }); ok {
		defer c.Close()
	}
	if a.Engine != nil {
		return a.Engine.Close(ctx)
	}
	var errs []error
	if a.Worker != nil {
		errs = append(errs, a.Worker.Close(ctx))
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
