package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"github.com/huyhandes/tsnuget/internal/catalog"
	"github.com/huyhandes/tsnuget/internal/nuget"
)

// A given id and version never changes content.
const immutableCacheControl = "max-age=1209600, immutable"

var errBadCount = errors.New("must be a non-negative integer")

func (s *Server) handleServiceIndex(c *gin.Context) {
	c.Data(http.StatusOK, jsonContentType, s.serviceIndex)
}

func (s *Server) handleVersions(c *gin.Context) {
	snap := s.catalog.Current()
	record, ok := s.lookup(c, snap)
	if !ok {
		return
	}

	s.setCatalogCacheControl(c, snap)
	writeJSON(c, http.StatusOK, nuget.VersionList{Versions: record.Versions()})
}

func (s *Server) handleRegistration(c *gin.Context) {
	snap := s.catalog.Current()
	record, ok := s.lookup(c, snap)
	if !ok {
		return
	}

	key := strconv.FormatUint(snap.Generation, 10) + ":" + strings.ToLower(record.Name())
	body, err := s.responseCache.GetOrSet(key, func() ([]byte, error) {
		return sonic.Marshal(&record.Registration)
	})
	if err != nil {
		log.Error().Err(err).Str("package", record.Name()).Msg("Failed to encode registration")
		writeError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	s.setCatalogCacheControl(c, snap)
	c.Data(http.StatusOK, jsonContentType, body)
}

func (s *Server) handleSearch(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.catalog.Current()
	s.setCatalogCacheControl(c, snap)

	if q.IsEmpty() {
		c.Data(http.StatusOK, jsonContentType, snap.AllPackagesPayload())
		return
	}

	result := catalog.Search(snap, q)
	writeJSON(c, http.StatusOK, &result)
}

func (s *Server) handleDownload(c *gin.Context) {
	ctx := c.Request.Context()
	snap := s.catalog.Current()
	record, ok := s.lookup(c, snap)
	if !ok {
		return
	}

	// The filename segment is cosmetic; id and version select the package
	ref, found := record.Ref(c.Param("version"))
	if !found {
		writeError(c, http.StatusNotFound, "Version not found")
		return
	}

	archive, err := s.packages.Materialize(ctx, ref)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug().Str("package", ref.ID).Str("version", ref.Version).Msg("Client left before package was ready")
			c.Abort()
			return
		}
		log.Error().Err(err).Str("request_id", RequestID(c)).Msg("❌ Failed to materialize package")
		writeError(c, http.StatusInternalServerError, "Failed to build package")
		return
	}

	reader, size, err := s.packages.Open(ctx, archive)
	if err != nil {
		log.Error().Err(err).Str("key", archive.Key).Msg("Failed to open package from storage")
		writeError(c, http.StatusInternalServerError, "Storage error")
		return
	}
	defer func() { _ = reader.Close() }()

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(archive.Key)))
	c.Header("Cache-Control", immutableCacheControl)
	c.Status(http.StatusOK)

	if c.Request.Method == http.MethodHead {
		return
	}

	written, err := s.body.ServeReader(ctx, c.Writer, reader, size)
	if err != nil {
		log.Error().
			Err(err).
			Str("key", archive.Key).
			Int64("bytes_written", written).
			Msg("Failed to stream package")
		return
	}

	log.Debug().
		Str("key", archive.Key).
		Int64("bytes_written", written).
		Msg("📦 Package served")
}

// lookup resolves the :id parameter, writing 400 or 404 itself on failure.
func (s *Server) lookup(c *gin.Context, snap *catalog.Snapshot) (*catalog.Record, bool) {
	record, err := snap.Lookup(c.Param("id"))
	switch {
	case err == nil:
		return record, true
	case errors.Is(err, catalog.ErrInvalidName):
		writeError(c, http.StatusBadRequest, "Invalid package id")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(c, http.StatusNotFound, "Package not found")
	default:
		log.Error().Err(err).Msg("Package lookup failed")
		writeError(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return nil, false
}

// setCatalogCacheControl lets clients keep catalog responses for half the
// refresh interval of the snapshot they came from.
func (s *Server) setCatalogCacheControl(c *gin.Context, snap *catalog.Snapshot) {
	maxAge := snap.RefreshInterval / 2
	if maxAge <= 0 {
		maxAge = s.config.CacheMaxAge()
	}
	c.Header("Cache-Control", fmt.Sprintf("max-age=%d", int(maxAge.Seconds())))
}

func parseQuery(c *gin.Context) (catalog.Query, error) {
	var q catalog.Query
	if text, ok := c.GetQuery("q"); ok {
		q.Text = &text
	}

	var err error
	if q.Skip, err = parseCount(c, "skip"); err != nil {
		return catalog.Query{}, err
	}
	if q.Take, err = parseCount(c, "take"); err != nil {
		return catalog.Query{}, err
	}
	return q, nil
}

func parseCount(c *gin.Context, name string) (*int, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%s %w", name, errBadCount)
	}
	return &n, nil
}
