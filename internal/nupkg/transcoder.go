// Package nupkg turns Thunderstore mod archives into NuGet packages and
// keeps the results in storage.
package nupkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"

	"github.com/huyhandes/tsnuget/internal/catalog"
	"github.com/huyhandes/tsnuget/internal/storage"
	"github.com/huyhandes/tsnuget/internal/streaming"
)

const (
	libDir      = "lib/netstandard2.0/"
	payloadExt  = ".dll"
	contentType = "application/octet-stream"
)

// Error categories, matched with errors.Is.
var (
	ErrDownload      = errors.New("download failed")
	ErrSourceArchive = errors.New("unreadable source archive")
	ErrWrite         = errors.New("failed to write package")
)

// Stage names the step a materialization failed in.
type Stage string

const (
	StageCheck     Stage = "check"
	StageDownload  Stage = "download"
	StageTranscode Stage = "transcode"
	StageManifest  Stage = "manifest"
	StageFinalize  Stage = "finalize"
)

type TranscodeError struct {
	ID      string
	Version string
	Stage   Stage
	Err     error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("materialize %s %s: %s: %v", e.ID, e.Version, e.Stage, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Archive is a finished package in storage.
type Archive struct {
	Key  string
	Size int64
}

// Transcoder materializes packages on demand. Concurrent requests for the
// same package share one materialization.
type Transcoder struct {
	storage    storage.Storage
	downloader streaming.Downloader
	tempDir    string
	inflight   singleflight.Group
}

// NewTranscoder creates a Transcoder. Intermediate files live in tempDir,
// or the system temp directory when it is empty.
func NewTranscoder(store storage.Storage, downloader streaming.Downloader, tempDir string) *Transcoder {
	return &Transcoder{
		storage:    store,
		downloader: downloader,
		tempDir:    tempDir,
	}
}

// StorageKey is where the package for id and version is kept.
func StorageKey(id, version string) string {
	return id + "." + version + ".nupkg"
}

// Materialize returns the stored package for ref, building it first when it
// is not in storage yet. Once started a build runs to completion even if ctx
// is cancelled; the caller just stops waiting for it.
func (t *Transcoder) Materialize(ctx context.Context, ref catalog.VersionRef) (Archive, error) {
	key := StorageKey(ref.ID, ref.Version)

	ch := t.inflight.DoChan(key, func() (interface{}, error) {
		return t.materialize(context.WithoutCancel(ctx), key, ref)
	})

	select {
	case <-ctx.Done():
		return Archive{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Archive{}, res.Err
		}
		if res.Shared {
			log.Debug().Str("key", key).Msg("Joined in-flight materialization")
		}
		return res.Val.(Archive), nil
	}
}

func (t *Transcoder) materialize(ctx context.Context, key string, ref catalog.VersionRef) (Archive, error) {
	fail := func(stage Stage, category, err error) (Archive, error) {
		return Archive{}, &TranscodeError{
			ID:      ref.ID,
			Version: ref.Version,
			Stage:   stage,
			Err:     fmt.Errorf("%w: %w", category, err),
		}
	}

	info, err := t.storage.Stat(ctx, key)
	if err == nil {
		return Archive{Key: key, Size: info.Size}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fail(StageCheck, ErrWrite, err)
	}

	start := time.Now()

	src, err := os.CreateTemp(t.tempDir, "download-*.zip")
	if err != nil {
		return fail(StageDownload, ErrWrite, err)
	}
	defer t.cleanup(src)

	result, err := t.downloader.Download(ctx, ref.DownloadURL, src)
	if err != nil {
		return fail(StageDownload, ErrDownload, err)
	}

	out, err := os.CreateTemp(t.tempDir, "package-*.nupkg")
	if err != nil {
		return fail(StageTranscode, ErrWrite, err)
	}
	defer t.cleanup(out)

	payloads, stage, err := transcode(src, result.Size, out, ref)
	if err != nil {
		category := ErrWrite
		if errors.Is(err, ErrSourceArchive) {
			category = ErrSourceArchive
		}
		return fail(stage, category, err)
	}
	if err := out.Close(); err != nil {
		return fail(StageFinalize, ErrWrite, err)
	}

	stored, err := t.storage.PutFile(ctx, key, out.Name(), contentType)
	if err != nil {
		return fail(StageFinalize, ErrWrite, err)
	}

	log.Info().
		Str("id", ref.ID).
		Str("version", ref.Version).
		Int64("source_bytes", result.Size).
		Int64("package_bytes", stored.Size).
		Int("payloads", payloads).
		Dur("duration", time.Since(start)).
		Msg("Package materialized")

	return Archive{Key: key, Size: stored.Size}, nil
}

// transcode copies every .dll of the source archive into out under
// lib/netstandard2.0, flattening directories, then appends the manifest.
// When two entries share a file name the first one wins.
func transcode(src io.ReaderAt, size int64, out io.Writer, ref catalog.VersionRef) (int, Stage, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return 0, StageTranscode, fmt.Errorf("%w: %w", ErrSourceArchive, err)
	}

	zw := zip.NewWriter(out)
	seen := make(map[string]struct{})
	payloads := 0

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if !strings.HasSuffix(strings.ToLower(name), payloadExt) {
			continue
		}
		folded := strings.ToLower(name)
		if _, dup := seen[folded]; dup {
			log.Debug().Str("id", ref.ID).Str("entry", f.Name).Msg("Skipping duplicate payload")
			continue
		}
		seen[folded] = struct{}{}

		if err := copyEntry(zw, f, libDir+name); err != nil {
			return 0, StageTranscode, err
		}
		payloads++
	}

	body, err := manifest(ref.ID, ref.Version, ref.Description)
	if err != nil {
		return 0, StageManifest, err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ref.ID + ".nuspec",
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return 0, StageManifest, err
	}
	if _, err := w.Write(body); err != nil {
		return 0, StageManifest, err
	}

	if err := zw.Close(); err != nil {
		return 0, StageFinalize, err
	}
	return payloads, "", nil
}

// copyEntry moves the compressed bytes of f into zw unchanged.
func copyEntry(zw *zip.Writer, f *zip.File, name string) error {
	raw, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceArchive, f.Name, err)
	}

	header := f.FileHeader
	header.Name = name
	header.Extra = nil
	header.Comment = ""

	w, err := zw.CreateRaw(&header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, raw); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceArchive, f.Name, err)
	}
	return nil
}

// cleanup removes an intermediate file. The package is already durable by
// the time this runs, so failures are only logged.
func (t *Transcoder) cleanup(f *os.File) {
	_ = f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", f.Name()).Msg("Failed to remove temporary file")
	}
}

// Open streams a materialized package from storage.
func (t *Transcoder) Open(ctx context.Context, a Archive) (io.ReadCloser, int64, error) {
	rc, info, err := t.storage.Get(ctx, a.Key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", a.Key, err)
	}
	return rc, info.Size, nil
}
