package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyhandes/tsnuget/internal/config"
)

func fakeThunderstore(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/experimental/community/":
			_, _ = w.Write([]byte(`{"pagination":{"next_link":null},"results":[{"identifier":"valheim"}]}`))
		case "/c/valheim/api/v1/package/":
			_, _ = w.Write([]byte(`[{
				"full_name": "denikson-BepInExPack_Valheim",
				"package_url": "https://thunderstore.io/c/valheim/p/denikson/BepInExPack_Valheim/",
				"is_deprecated": false,
				"versions": [{
					"description": "BepInEx pack for Valheim",
					"icon": "https://cdn.test/icon.png",
					"version_number": "5.4.2202",
					"download_url": "https://thunderstore.io/package/download/denikson/BepInExPack_Valheim/5.4.2202/",
					"downloads": 1000,
					"date_created": "2023-05-01T00:00:00Z",
					"website_url": "https://github.com/denikson",
					"dependencies": []
				}]
			}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, upstream string) *config.Config {
	return &config.Config{
		BaseURL:              "http://feed.test",
		Port:                 "5000",
		UpstreamURL:          upstream,
		RefreshInterval:      time.Minute,
		FetchConcurrency:     2,
		StorageType:          "local",
		CacheDir:             t.TempDir(),
		LogLevel:             "ERROR",
		ResponseCacheEntries: 8,
	}
}

func TestNewApp(t *testing.T) {
	upstream := fakeThunderstore(t)
	cfg := testConfig(t, upstream.URL)

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	assert.DirExists(t, filepath.Join(cfg.CacheDir, ".tmp"))
	assert.Zero(t, a.cache.Current().Generation)

	require.NoError(t, a.warmUp(t.Context()))
	assert.Equal(t, uint64(1), a.cache.Current().Generation)
	assert.Equal(t, 1, a.cache.Current().Len())

	w := httptest.NewRecorder()
	a.server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nuget/v3/base/DENIKSON-BEPINEXPACK_VALHEIM/index.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"versions":["5.4.2202"]}`, w.Body.String())
}

func TestNewApp_UnknownStorage(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StorageType = "tape"

	_, err := newApp(cfg)
	assert.Error(t, err)
}

func TestWarmUp_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	a, err := newApp(testConfig(t, upstream.URL))
	require.NoError(t, err)
	defer a.close()

	assert.Error(t, a.warmUp(t.Context()))
	assert.Zero(t, a.cache.Current().Generation)
}

func TestWatchStdin(t *testing.T) {
	var calls atomic.Int64
	refresh := func(ctx context.Context) error {
		if calls.Add(1) == 2 {
			return errors.New("upstream down")
		}
		return nil
	}

	watchStdin(strings.NewReader("\nrefresh\n\n"), refresh)

	assert.Equal(t, int64(3), calls.Load(), "one refresh per line, failures do not stop the loop")
}

func TestWatchStdin_Empty(t *testing.T) {
	var calls atomic.Int64
	watchStdin(strings.NewReader(""), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	assert.Zero(t, calls.Load())
}

func TestDownloadClient(t *testing.T) {
	cfg := &config.Config{DisableSSLVerification: true}
	client := downloadClient(cfg)
	assert.Equal(t, 5*time.Minute, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)

	cfg = &config.Config{DownloadTimeout: 30 * time.Second}
	assert.Equal(t, 30*time.Second, downloadClient(cfg).Timeout)
}
