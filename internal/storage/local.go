package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
)

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		baseDir: baseDir,
	}, nil
}

func (l *LocalStorage) buildPath(key string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key))
}

func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	file, err := os.Open(l.buildPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return file, &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

// put writes to a temp file next to the target and renames it into place,
// so a reader never sees a partial object.
func (l *LocalStorage) put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	path := l.buildPath(key)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if size >= 0 && written != size {
		return nil, fmt.Errorf("failed to write file: got %d of %d bytes", written, size)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move file: %w", err)
	}

	return &ObjectInfo{
		Key:         key,
		Size:        written,
		ContentType: contentType,
	}, nil
}

// PutFile renames path into place. When the rename is not possible, for
// example across filesystems, the file is copied and then removed.
func (l *LocalStorage) PutFile(ctx context.Context, key, path, contentType string) (*ObjectInfo, error) {
	target := l.buildPath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(path, target); err == nil {
		stat, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return &ObjectInfo{
			Key:          key,
			Size:         stat.Size(),
			LastModified: stat.ModTime(),
			ContentType:  contentType,
		}, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	stat, err := src.Stat()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}

	info, err := l.put(ctx, key, src, stat.Size(), contentType)
	src.Close()
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove source file after copy")
	}
	return info, nil
}

func (l *LocalStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := os.Stat(l.buildPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

// Close is a no-op for local storage
func (l *LocalStorage) Close() error {
	return nil
}
