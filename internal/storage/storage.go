package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get and Stat when the key is absent.
var ErrNotFound = errors.New("object not found")

// ObjectInfo contains metadata about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// Storage defines the interface for storage backends
type Storage interface {
	// Get retrieves an object from storage
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// PutFile stores a finished local file under key. Implementations may
	// move the file instead of copying it, so the caller must not reuse path.
	PutFile(ctx context.Context, key, path, contentType string) (*ObjectInfo, error)

	// Stat retrieves object metadata without downloading content. A missing
	// key is ErrNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Close releases any resources held by the storage backend
	Close() error
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)
