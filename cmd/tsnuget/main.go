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

	"github.com/phuslu/log"

	"github.com/huyhandes/tsnuget/internal/config"
	"github.com/huyhandes/tsnuget/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tsnuget: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.LogConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Color:      cfg.LogColor,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	log.Info().
		Str("version", "1.0.0").
		Str("storage_type", cfg.StorageType).
		Str("log_level", cfg.LogLevel).
		Str("log_format", cfg.LogFormat).
		Msg("🚀 Starting tsnuget server")

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("upstream_url", cfg.UpstreamURL).
		Dur("refresh_interval", cfg.RefreshInterval).
		Int("fetch_concurrency", cfg.FetchConcurrency).
		Str("port", cfg.Port).
		Msg("📋 Configuration loaded")

	if cfg.StorageType == "s3" {
		log.Info().
			Str("endpoint", cfg.S3Endpoint).
			Str("bucket", cfg.S3Bucket).
			Str("prefix", cfg.S3Prefix).
			Str("region", cfg.S3Region).
			Bool("ssl", cfg.S3UseSSL).
			Msg("☁️  S3 storage configured")
	} else {
		log.Info().
			Str("cache_dir", cfg.CacheDir).
			Msg("💾 Local storage configured")
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	// Nothing is served until the first full catalog is in place
	if err := a.warmUp(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to build initial catalog")
	}
	a.cache.StartAutoRefresh(cfg.RefreshInterval)

	go watchStdin(os.Stdin, a.cache.RefreshNow)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", httpServer.Addr).
			Msg("🌐 HTTP server starting")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Warn().Msg("⚠️  Shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	a.close()

	log.Info().Msg("✅ Server stopped gracefully")
}
