package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/wildfire-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/remote"
	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/couchcryptid/wildfire-risk-service/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reporter, err := observability.NewSentryReporter(cfg.SentryDSN, cfg.AppEnv)
	if err != nil {
		logger.Error("failed to initialize sentry", "error", err)
		os.Exit(1)
	}
	defer reporter.Flush(2 * time.Second)

	format, err := model.ParseFormat(cfg.ModelFormat)
	if err != nil {
		logger.Error("invalid model format", "error", err)
		os.Exit(1)
	}
	if format == model.FormatONNX && cfg.ONNXLibraryPath != "" {
		model.SetONNXLibraryPath(cfg.ONNXLibraryPath)
	}

	// Remote acquisition is feature-flagged via DATA_BASE_URL.
	opts := store.Options{Dir: cfg.DataDir, Format: format, Forests: cfg.Forests}
	if cfg.AcquisitionEnabled() {
		opts.Acquirer = remote.NewClient(cfg, logger, metrics)
		logger.Info("artifact acquisition enabled", "base_url", cfg.DataBaseURL, "rate", cfg.DataDownloadRate)
	} else {
		logger.Info("artifact acquisition disabled")
	}

	artifacts := store.New(opts, logger, metrics)
	p := pipeline.New(artifacts, logger, metrics)

	srvOpts := httpadapter.Options{Reporter: reporter}
	var writer *kafkaadapter.Writer
	if cfg.PredictionEventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		srvOpts.Events = writer
		logger.Info("prediction events enabled", "topic", cfg.PredictionTopic, "brokers", cfg.KafkaBrokers)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, srvOpts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load artifacts; /readyz reports 503 until this completes.
	go func() {
		if err := p.Warm(ctx, cfg.PreloadForests); err != nil {
			logger.Error("artifact preload failed", "error", err)
			reporter.CaptureError(ctx, err, map[string]string{"stage": "preload"})
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := artifacts.Close(); err != nil {
		logger.Error("model close error", "error", err)
	}

	logger.Info("shutdown complete")
}
