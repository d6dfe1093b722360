// Package app assembles the repository, insight summarizer and analytics
// service from configuration. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"shoppersense/internal/config"
	"shoppersense/internal/ingest"
	"shoppersense/internal/insights"
	"shoppersense/internal/services"
	"shoppersense/internal/store"
)

// OpenRepository returns the configured transaction store. The memory driver
// loads CSVFile through the gob cache; the SQL drivers open DSN and, when a
// CSV file is also configured, seed it (re-seeding skips duplicates).
func OpenRepository(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Repository, error) {
	loader := &ingest.Loader{CacheDir: cfg.CacheDir, Logger: logger}

	if cfg.Driver == "memory" {
		txs, err := loader.LoadFile(ctx, cfg.CSVFile)
		if err != nil {
			return nil, fmt.Errorf("load csv: %w", err)
		}
		logger.Info("memory store ready", "records", len(txs), "file", cfg.CSVFile)
		return store.NewMemory(txs), nil
	}

	repo, err := store.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.CSVFile == "" {
		return repo, nil
	}

	txs, err := loader.LoadFile(ctx, cfg.CSVFile)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("load seed csv: %w", err)
	}
	n, err := repo.BulkCreate(ctx, txs)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed store: %w", err)
	}
	logger.Info("store seeded", "driver", cfg.Driver, "file", cfg.CSVFile, "inserted", n, "skipped", len(txs)-n)
	return repo, nil
}

// NewSummarizer builds the insight summarizer. Without an API key the
// generator is left nil and every request uses the fallback insights.
func NewSummarizer(cfg config.InsightsConfig, logger *slog.Logger) (*insights.Summarizer, error) {
	opts := insights.Options{
		Timeout:         cfg.Timeout,
		Retries:         cfg.Retries,
		MaxTransactions: cfg.MaxTransactions,
	}
	if cfg.APIKey == "" {
		logger.Info("insight provider disabled, serving fallback insights")
		return insights.NewSummarizer(nil, opts, logger), nil
	}

	client, err := insights.NewLLMClient(insights.ClientConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
	}, &http.Client{}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("insight provider configured", "provider", cfg.Provider, "model", cfg.Model)
	return insights.NewSummarizer(client, opts, logger), nil
}

// NewAnalytics opens the store and wires the service. The caller owns the
// returned repository and must Close it.
func NewAnalytics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.Analytics, store.Repository, error) {
	summarizer, err := NewSummarizer(cfg.Insights, logger)
	if err != nil {
		return nil, nil, err
	}
	repo, err := OpenRepository(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	return services.NewAnalytics(repo, summarizer, logger), repo, nil
}
