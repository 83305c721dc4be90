package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unifyiq/unifyiq/internal/cache"
	"github.com/unifyiq/unifyiq/internal/config"
	"github.com/unifyiq/unifyiq/internal/engine"
	"github.com/unifyiq/unifyiq/internal/llm"
	"github.com/unifyiq/unifyiq/internal/planner"
	"github.com/unifyiq/unifyiq/internal/repo"
	"github.com/unifyiq/unifyiq/internal/services"
	"github.com/unifyiq/unifyiq/internal/unify"
)

// application holds the wired components shared by serve and ask.
type application struct {
	store   *unify.Store
	queries *services.QueryService
	cache   cache.Provider
}

func (a *application) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("cache close", slog.Any("error", err))
		}
	}
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	source, err := newSource(cfg.Sources, logger)
	if err != nil {
		return nil, err
	}

	links, err := unify.LoadLinkMap(cfg.Links.Path)
	if err != nil {
		return nil, err
	}
	store := unify.NewStore(logger, source, unify.Options{LinkMap: links})

	vocab, err := planner.LoadVocabulary(cfg.Planner.VocabularyPath)
	if err != nil {
		return nil, err
	}
	rules := planner.NewRulePlanner(vocab, logger)

	app := &application{store: store}

	var llmPlanner planner.Planner
	if cfg.LLM.Enabled() {
		app.cache = newCacheProvider(cfg.Cache, logger)
		gemini, err := llm.NewGeminiCompleter(ctx, llm.GeminiConfig{
			APIKey:            cfg.LLM.APIKey,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			SystemInstruction: planner.SystemInstruction(),
		}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init llm planner: %w", err)
		}
		completer := llm.NewCachedCompleter(gemini, app.cache, gemini.Model(), cfg.LLM.CacheTTL, logger)
		llmPlanner = planner.NewLLMPlanner(completer, vocab, cfg.LLM.MinConfidence, logger)
		logger.Info("llm planner enabled", slog.String("model", gemini.Model()))
	} else {
		logger.Info("llm planner disabled, using rule planner only")
	}

	selector := planner.NewSelector(llmPlanner, rules, cfg.LLM.Timeout, logger)
	app.queries = services.NewQueryService(logger, store, selector, engine.NewExecutor(logger))
	return app, nil
}

func newSource(cfg config.SourcesConfig, logger *slog.Logger) (unify.Source, error) {
	switch cfg.Kind {
	case config.SourceHTTP:
		return repo.NewHTTPSource(repo.HTTPOptions{
			BaseURL:      cfg.HTTP.BaseURL,
			AccountsPath: cfg.HTTP.AccountsPath,
			IssuesPath:   cfg.HTTP.IssuesPath,
			ItemsField:   cfg.HTTP.ItemsField,
			TotalField:   cfg.HTTP.TotalField,
			PageSize:     cfg.HTTP.PageSize,
			APIKey:       cfg.HTTP.APIKey,
			Timeout:      cfg.HTTP.Timeout,
		}, logger), nil
	case config.SourceFile:
		return repo.NewFileSource(cfg.Files.Accounts, cfg.Files.Issues), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMemoryProvider(cfg.MaxEntries)
	case config.CacheValkey:
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
			KeyPrefix:    cfg.KeyPrefix,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
			return cache.NoopProvider{}
		}
		return provider
	}
	return cache.NoopProvider{}
}

// reloadEvery rebuilds the dataset on a fixed interval until ctx ends.
func reloadEvery(ctx context.Context, interval time.Duration, reload func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload(ctx)
		}
	}
}
