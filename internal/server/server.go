package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"github.com/huyhandes/tsnuget/internal/cache"
	"github.com/huyhandes/tsnuget/internal/catalog"
	"github.com/huyhandes/tsnuget/internal/config"
	"github.com/huyhandes/tsnuget/internal/nuget"
	"github.com/huyhandes/tsnuget/internal/nupkg"
	"github.com/huyhandes/tsnuget/internal/streaming"
)

const jsonContentType = "application/json; charset=utf-8"

// Response buffer pool for reducing allocations
var responseBufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Catalog is the snapshot source the handlers read from.
type Catalog interface {
	Current() *catalog.Snapshot
	RefreshNow(ctx context.Context) error
}

// Packages materializes and opens package archives.
type Packages interface {
	Materialize(ctx context.Context, ref catalog.VersionRef) (nupkg.Archive, error)
	Open(ctx context.Context, a nupkg.Archive) (io.ReadCloser, int64, error)
}

type Server struct {
	config        *config.Config
	catalog       Catalog
	packages      Packages
	responseCache *cache.ResponseCache
	body          streaming.BodyServer
	urls          nuget.URLs
	serviceIndex  []byte
	router        *gin.Engine
	startedAt     time.Time
}

func New(cfg *config.Config, cat Catalog, packages Packages) (*Server, error) {
	// Set Gin mode based on log level
	if cfg.LogLevel == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog())
	// Packages are zip archives already
	router.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedExtensions([]string{".nupkg"})))

	urls := nuget.URLs{BaseURL: cfg.BaseURL}
	serviceIndex, err := sonic.Marshal(urls.ServiceIndex())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize service index: %w", err)
	}

	s := &Server{
		config:   cfg,
		catalog:  cat,
		packages: packages,
		// Keys carry the snapshot generation, so entries only need to
		// outlive the snapshot they were built from.
		responseCache: cache.NewResponseCache(cfg.ResponseCacheEntries, 2*cfg.RefreshInterval),
		body:          streaming.NewBodyServer(),
		urls:          urls,
		serviceIndex:  serviceIndex,
		router:        router,
		startedAt:     time.Now(),
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome)

	// NuGet v3 feed
	s.router.GET(nuget.PathIndex, s.handleServiceIndex)
	s.router.GET(nuget.PathBase+"/:id/index.json", s.handleVersions)
	s.router.GET(nuget.PathBase+"/:id/:version/:filename", s.handleDownload)
	s.router.HEAD(nuget.PathBase+"/:id/:version/:filename", s.handleDownload)
	s.router.GET(nuget.PathRegistration+"/:id/index.json", s.handleRegistration)
	s.router.GET(nuget.PathSearch, s.handleSearch)

	// Operator endpoints
	s.router.POST("/cache/refresh", s.handleRefresh)
	s.router.GET("/health", s.handleHealth)

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
}

func (s *Server) handleHome(c *gin.Context) {
	snap := s.catalog.Current()

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>tsnuget - Thunderstore NuGet feed</title></head>
<body>
	<h1>tsnuget - Thunderstore NuGet feed</h1>
	<p>Serves the Thunderstore package catalog as a NuGet v3 feed.</p>
	<ul>
		<li>Feed URL: %s%s</li>
		<li>Upstream: %s</li>
		<li>Packages: %d</li>
		<li>Catalog generation: %d</li>
		<li>Refresh interval: %s</li>
		<li>Version: 1.0.0</li>
	</ul>
	<p><a href="%s">Service index</a> | <a href="/health">Health Check</a></p>
</body>
</html>`, s.config.BaseURL, nuget.PathIndex, s.config.UpstreamURL, snap.Len(), snap.Generation,
		snap.RefreshInterval.String(), nuget.PathIndex)

	c.Header("Content-Type", "text/html")
	c.String(http.StatusOK, html)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.catalog.Current()

	status := http.StatusOK
	state := "success"
	// Generation 0 is the empty placeholder installed before the first refresh
	if snap.Generation == 0 {
		status = http.StatusServiceUnavailable
		state = "starting"
	}

	data := gin.H{
		"packages":                 snap.Len(),
		"generation":               snap.Generation,
		"refresh_interval_seconds": int(snap.RefreshInterval.Seconds()),
		"upstream_url":             s.config.UpstreamURL,
		"storage_type":             s.config.StorageType,
		"cached_responses":         s.responseCache.Len(),
		"uptime_seconds":           int(time.Since(s.startedAt).Seconds()),
	}
	if !snap.BuiltAt.IsZero() {
		data["built_at"] = snap.BuiltAt.Unix()
	}

	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().Unix(),
		"data":      data,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	start := time.Now()

	// A manual refresh finishes even if the caller hangs up
	if err := s.catalog.RefreshNow(context.WithoutCancel(c.Request.Context())); err != nil {
		log.Error().Err(err).Msg("❌ Manual catalog refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "error",
			"message": "Upstream refresh failed",
		})
		return
	}

	// Entries of older generations can never be hit again
	s.responseCache.Purge()

	snap := s.catalog.Current()
	log.Info().
		Uint64("generation", snap.Generation).
		Int("packages", snap.Len()).
		Dur("duration", time.Since(start)).
		Msg("🔄 Catalog refreshed on request")

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"generation": snap.Generation,
			"packages":   snap.Len(),
		},
	})
}

// writeJSON encodes v through a pooled buffer.
func writeJSON(c *gin.Context, status int, v interface{}) {
	buf := responseBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer responseBufferPool.Put(buf)

	if err := sonic.ConfigFastest.NewEncoder(buf).Encode(v); err != nil {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to encode response")
		writeError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Data(status, jsonContentType, buf.Bytes())
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "error",
		"message": message,
	})
}
