package storage

import (
	"fmt"
	"strings"

	"github.com/huyhandes/tsnuget/internal/config"
)

// New creates the backend selected by the configuration.
func New(cfg *config.Config) (Storage, error) {
	switch StorageType(cfg.StorageType) {
	case StorageTypeS3:
		endpoint, useSSL := splitEndpoint(cfg.S3Endpoint, cfg.S3UseSSL)
		return NewS3Storage(&S3Config{
			Endpoint:        endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UseSSL:          useSSL,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			ConnectTimeout:  cfg.ConnectTimeout,
			RequestTimeout:  cfg.DownloadTimeout,
		})
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.CacheDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// splitEndpoint accepts AWS_ENDPOINT_URL style values with a scheme; the
// scheme overrides the SSL setting.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return endpoint, useSSL
	}
}
