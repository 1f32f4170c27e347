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

	"github.com/orderlens/orderlens/internal/api"
	"github.com/orderlens/orderlens/internal/auth"
	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/datalayer"
	"github.com/orderlens/orderlens/internal/export"
	"github.com/orderlens/orderlens/internal/observability"
	s3store "github.com/orderlens/orderlens/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("orderlens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	layer := datalayer.New(cfg, logger)
	defer func() { _ = layer.Close() }()

	deps := api.Dependencies{
		Logger:            logger,
		DataLayer:         layer,
		DependencyTimeout: 2 * time.Second,
	}

	if cfg.Export.Endpoint != "" && cfg.Export.Bucket != "" {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Export.Endpoint,
			Region:           cfg.Export.Region,
			Bucket:           cfg.Export.Bucket,
			AccessKeyID:      cfg.Export.AccessKeyID,
			SecretAccessKey:  cfg.Export.SecretAccessKey,
			UseSSL:           cfg.Export.UseSSL,
			Prefix:           cfg.Export.Prefix,
			AutoCreateBucket: cfg.Export.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize export object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exporter = export.New(objectStore, logger)
	} else {
		logger.Warn("export object store not configured; export endpoint disabled")
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the warehouse session so the first dashboard request does not
	// pay the connect cost. A failure here is not fatal; execution paths
	// reconnect lazily.
	if err := layer.Connect(ctx); err != nil {
		logger.Warn("warehouse warm-up failed", slog.Any("error", err))
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
