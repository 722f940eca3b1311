package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"

	"github.com/huyhandes/tsnuget/internal/catalog"
	"github.com/huyhandes/tsnuget/internal/config"
	"github.com/huyhandes/tsnuget/internal/nupkg"
	"github.com/huyhandes/tsnuget/internal/server"
	"github.com/huyhandes/tsnuget/internal/storage"
	"github.com/huyhandes/tsnuget/internal/streaming"
	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

// app wires the feed's components together.
type app struct {
	cache   *catalog.Cache
	storage storage.Storage
	server  *server.Server
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Intermediate files stay next to the local store so finished packages
	// can be renamed into place
	tempDir := filepath.Join(cfg.CacheDir, ".tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	builder := catalog.NewBuilder(thunderstore.NewClient(cfg), cfg.BaseURL, cfg.FetchConcurrency)
	cache := catalog.NewCache(builder, cfg.RefreshInterval)
	transcoder := nupkg.NewTranscoder(store, streaming.NewDownloader(downloadClient(cfg)), tempDir)

	srv, err := server.New(cfg, cache, transcoder)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{cache: cache, storage: store, server: srv}, nil
}

// warmUp blocks until the first complete catalog is installed.
func (a *app) warmUp(ctx context.Context) error {
	start := time.Now()
	if err := a.cache.RefreshNow(ctx); err != nil {
		return err
	}

	snap := a.cache.Current()
	log.Info().
		Int("packages", snap.Len()).
		Dur("duration", time.Since(start)).
		Msgf("⏱️  Took %.2f seconds to get full cache", time.Since(start).Seconds())
	return nil
}

func (a *app) close() {
	a.cache.StopAutoRefresh()
	if err := a.storage.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close storage")
	}
}

// downloadClient is used for mod archive downloads, which can be large.
func downloadClient(cfg *config.Config) *http.Client {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	dialTimeout := 10 * time.Second
	if cfg.ConnectTimeout > 0 {
		dialTimeout = cfg.ConnectTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.DisableSSLVerification,
			},
			ResponseHeaderTimeout: cfg.ReadTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// watchStdin forces a catalog refresh for every line read from r. It
// returns when r is exhausted.
func watchStdin(r io.Reader, refresh func(context.Context) error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Info().Msg("🔄 Refresh requested from stdin")

		start := time.Now()
		if err := refresh(context.Background()); err != nil {
			log.Error().Err(err).Msg("❌ Requested catalog refresh failed, keeping previous snapshot")
			continue
		}
		log.Info().Dur("duration", time.Since(start)).Msg("✅ Catalog refreshed")
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Stopped reading stdin")
	}
}
