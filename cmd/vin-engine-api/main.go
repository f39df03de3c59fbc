// Package main provides the VIN engine API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vindiesel/vin-engine/internal/cache"
	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/nhtsa"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/internal/scan"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	metrics := observability.NewMetrics()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Driver).
		Bool("gateway", cfg.Gateway.Enabled).
		Str("version", version).
		Msg("Starting VIN engine API")

	decodeCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Cache.Driver).Msg("Failed to open decode cache")
	}
	defer decodeCache.Close()

	var gateway vin.Gateway
	if cfg.Gateway.Enabled {
		gateway = nhtsa.NewClient(nhtsa.Config{
			BaseURL:    cfg.Gateway.BaseURL,
			Timeout:    cfg.Gateway.Timeout,
			UserAgent:  cfg.Gateway.UserAgent,
			MaxRetries: cfg.Gateway.MaxRetries,
		}, nhtsa.WithLogger(logger.WithOperation("nhtsa")), nhtsa.WithMetrics(metrics))
	}

	service := enrichment.NewService(enrichment.Config{
		RemoteTimeout: cfg.Enrichment.RemoteTimeout,
		CacheTTL:      cfg.Cache.TTL,
	}, gateway, decodeCache,
		enrichment.WithLogger(logger.WithOperation("decode")),
		enrichment.WithMetrics(metrics),
	)

	scanner := scan.NewScanner(
		scan.NewTesseract(cfg.OCR, scan.ExecRunner{Logger: logger.WithOperation("ocr")}),
		logger.WithOperation("scan"),
		metrics,
	)

	router := NewRouter(cfg, Dependencies{
		Logger:    logger,
		Metrics:   metrics,
		Decoder:   service,
		Extractor: scanner,
		Cache:     decodeCache,
		Version:   version,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
