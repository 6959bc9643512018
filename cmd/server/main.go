package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/app"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/logging"
	"github.com/fairface-insight/fairaudit/internal/metrics"
	"github.com/fairface-insight/fairaudit/pkg/otel"
)

func main() {
	cfg, err := config.Load(os.Getenv("FAIRAUDIT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if cfg.OTelEnabled {
		otelCfg := otel.DefaultConfig("fairaudit")
		otelCfg.CollectorEndpoint = cfg.OTelEndpoint
		tp, err := otel.InitTracer(ctx, otelCfg)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			if err := otel.Shutdown(context.Background(), tp); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	a, err := app.New(cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("error closing embedding cache", zap.Error(err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.CheckEmbedder(pingCtx)
	cancel()

	gin.SetMode(gin.ReleaseMode)
	srv := NewServer(cfg, a.Engine, a.Embedder.Model(), logger, a.Metrics, prometheus.DefaultGatherer)

	// audits over large datasets can run for minutes
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdown:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
