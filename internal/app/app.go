// Package app wires the audit engine from configuration. Both the HTTP
// server and the CLI build their engine here.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/audit"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/embedstore"
	"github.com/fairface-insight/fairaudit/internal/metrics"
	"github.com/fairface-insight/fairaudit/internal/provider"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Embedder *provider.DeepFaceClient
	Cache    *embedstore.Cache
	Engine   *audit.Engine
}

// New opens the embedding cache backend, creates the provider client and
// the engine. The caller owns the returned App and must Close it.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*App, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	store, err := embedstore.Open(cfg, m)
	if err != nil {
		return nil, err
	}
	cache := embedstore.NewCache(store,
		embedstore.WithLogger(logger.Named("embedstore")),
		embedstore.WithMetrics(m))

	client := provider.NewDeepFaceClient(provider.DeepFaceConfig{
		BaseURL:       cfg.EmbedderURL,
		Model:         cfg.EmbedderModel,
		Detector:      cfg.EmbedderDetector,
		Timeout:       cfg.EmbedderTimeout,
		MinConfidence: cfg.MinFaceConfidence,
	},
		provider.WithRateLimit(cfg.EmbedderRPS),
		provider.WithClientLogger(logger.Named("provider")))

	engine := audit.NewEngine(audit.OptionsFromConfig(cfg), client, cache,
		audit.WithLogger(logger.Named("audit")),
		audit.WithMetrics(m))

	logger.Info("engine ready",
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("embedder_url", cfg.EmbedderURL),
		zap.String("model", cfg.EmbedderModel),
		zap.Strings("groups", cfg.Groups))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Embedder: client,
		Cache:    cache,
		Engine:   engine,
	}, nil
}

// CheckEmbedder reports whether the embedding provider answers. A failure
// is logged, not fatal: audits over a warm shared cache still work.
func (a *App) CheckEmbedder(ctx context.Context) bool {
	if err := a.Embedder.Ping(ctx); err != nil {
		a.Logger.Warn("embedding provider unreachable", zap.String("url", a.Config.EmbedderURL), zap.Error(err))
		return false
	}
	return true
}

// Close releases the cache backend.
func (a *App) Close() error {
	return a.Cache.Close()
}
