package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"
)

const (
	minPartSize = 5 * 1024 * 1024
	maxPartSize = 5 * 1024 * 1024 * 1024
	maxParts    = 10000
)

// S3Config holds S3 storage configuration
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
	UseSSL          bool
	ForcePathStyle  bool

	PartSize       int64 // multipart part size, default 10MB
	MaxConnections int
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// S3Storage implements Storage interface for S3-compatible backends
type S3Storage struct {
	client    *minio.Client
	bucket    string
	prefix    string
	partSize  int64
	transport *http.Transport

	statSF singleflight.Group
}

// NewS3Storage creates the client and checks that the bucket exists.
func NewS3Storage(cfg *S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = 10 * 1024 * 1024
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 100
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Bool("ssl", cfg.UseSSL).
		Msg("Creating S3 storage backend")

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxConnections,
		MaxConnsPerHost:       cfg.MaxConnections,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	}
	if cfg.ForcePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Msg("S3 storage backend initialized")

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		partSize:  cfg.PartSize,
		transport: transport,
	}, nil
}

func (s *S3Storage) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// calculateOptimalPartSize keeps uploads under the 10,000 part limit while
// never going below the configured part size.
func (s *S3Storage) calculateOptimalPartSize(size int64) int64 {
	partSize := s.partSize
	if partSize < minPartSize {
		partSize = minPartSize
	}
	if size <= 0 {
		return partSize
	}

	const mb = 1024 * 1024
	if needed := (size + maxParts - 1) / maxParts; needed > partSize {
		partSize = (needed + mb - 1) / mb * mb
	}
	if partSize > maxPartSize {
		partSize = maxPartSize
	}
	return partSize
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.buildKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	stat, err := object.Stat()
	if err != nil {
		object.Close()
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return object, objectInfo(key, stat), nil
}

// PutFile uploads the file; the local copy is left for the caller to remove.
func (s *S3Storage) PutFile(ctx context.Context, key, path, contentType string) (*ObjectInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}
	opts := minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    uint64(s.calculateOptimalPartSize(stat.Size())),
	}

	start := time.Now()
	uploadInfo, err := s.client.FPutObject(ctx, s.bucket, s.buildKey(key), path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file %s: %w", key, err)
	}
	s.logUpload(key, uploadInfo, time.Since(start))

	return &ObjectInfo{
		Key:         key,
		Size:        uploadInfo.Size,
		ETag:        uploadInfo.ETag,
		ContentType: contentType,
	}, nil
}

func (s *S3Storage) logUpload(key string, info minio.UploadInfo, duration time.Duration) {
	log.Info().
		Str("key", key).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Dur("duration", duration).
		Msg("Object stored")
}

// Stat collapses concurrent checks for the same key into one request.
func (s *S3Storage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	result, err, _ := s.statSF.Do(key, func() (interface{}, error) {
		stat, err := s.client.StatObject(ctx, s.bucket, s.buildKey(key), minio.StatObjectOptions{})
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
			}
			return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
		}
		return objectInfo(key, stat), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ObjectInfo), nil
}

func objectInfo(key string, stat minio.ObjectInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ETag:         stat.ETag,
		ContentType:  stat.ContentType,
	}
}

// Close releases idle connections
func (s *S3Storage) Close() error {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	return nil
}
