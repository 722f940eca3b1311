package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Feed configuration
	BaseURL string // public URL clients use to reach this feed
	Port    string

	// Upstream configuration
	UpstreamURL      string
	RefreshInterval  time.Duration
	FetchConcurrency int

	// Storage configuration
	StorageType       string // "local" or "s3"
	CacheDir          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Prefix          string
	S3ForcePathStyle  bool
	S3UseSSL          bool

	// Timeout configuration
	DownloadTimeout time.Duration
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration

	// Logging configuration
	LogLevel      string
	LogFormat     string // console or json
	LogColor      bool   // enable color for console logs
	LogFile       string // optional rotating log file
	LogMaxSizeMB  int
	LogMaxBackups int

	// SSL configuration
	DisableSSLVerification bool

	// Response configuration
	ResponseCacheEntries int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		BaseURL:                strings.TrimSuffix(getEnv("NUGET_BASE_URL", ""), "/"),
		Port:                   getEnv("NUGET_PORT", "5000"),
		UpstreamURL:            strings.TrimSuffix(getEnv("TSNUGET_UPSTREAM_URL", "https://thunderstore.io"), "/"),
		RefreshInterval:        getDurationEnv("TSNUGET_REFRESH_INTERVAL", 5*time.Minute),
		FetchConcurrency:       int(getIntEnv("TSNUGET_FETCH_CONCURRENCY", 16)),
		StorageType:            getEnv("TSNUGET_STORAGE_TYPE", "local"),
		CacheDir:               getEnv("TSNUGET_CACHE_DIR", "nupkgs"),
		DownloadTimeout:        getFloatDurationEnv("TSNUGET_DOWNLOAD_TIMEOUT", 5*time.Minute),
		LogLevel:               getEnv("TSNUGET_LOGGING_LEVEL", "INFO"),
		LogFormat:              getEnv("TSNUGET_LOG_FORMAT", "console"),
		LogColor:               getBoolEnv("TSNUGET_LOG_COLOR", true),
		LogFile:                getEnv("TSNUGET_LOG_FILE", ""),
		LogMaxSizeMB:           int(getIntEnv("TSNUGET_LOG_MAX_SIZE_MB", 100)),
		LogMaxBackups:          int(getIntEnv("TSNUGET_LOG_MAX_BACKUPS", 3)),
		DisableSSLVerification: getBoolEnv("TSNUGET_DISABLE_SSL_VERIFICATION", false),
		ResponseCacheEntries:   int(getIntEnv("TSNUGET_RESPONSE_CACHE_ENTRIES", 4096)),

		S3Endpoint:        getEnv("AWS_ENDPOINT_URL", ""),
		S3AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Region:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:          getEnv("TSNUGET_S3_BUCKET", ""),
		S3Prefix:          getEnv("TSNUGET_S3_PREFIX", "tsnuget"),
		S3ForcePathStyle:  getBoolEnv("TSNUGET_S3_FORCE_PATH_STYLE", false),
		S3UseSSL:          getBoolEnv("TSNUGET_S3_USE_SSL", true),
	}

	// Connect and read timeouts default in pairs
	if connectTimeout := getEnv("TSNUGET_CONNECT_TIMEOUT", ""); connectTimeout != "" {
		cfg.ConnectTimeout = getFloatDurationEnv("TSNUGET_CONNECT_TIMEOUT", 0)
	}
	if readTimeout := getEnv("TSNUGET_READ_TIMEOUT", ""); readTimeout != "" {
		cfg.ReadTimeout = getFloatDurationEnv("TSNUGET_READ_TIMEOUT", 0)
	}
	if cfg.ConnectTimeout > 0 && cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.ReadTimeout > 0 && cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 3100 * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("NUGET_BASE_URL must be set")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("NUGET_PORT must be numeric, got %q", c.Port)
	}
	if c.RefreshInterval <= 0 {
		return errors.New("TSNUGET_REFRESH_INTERVAL must be positive")
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 1
	}

	switch c.StorageType {
	case "local":
		if c.CacheDir == "" {
			return errors.New("TSNUGET_CACHE_DIR must not be empty")
		}
	case "s3":
		if c.S3Endpoint == "" {
			c.S3Endpoint = "s3.amazonaws.com"
		}
		if c.S3Bucket == "" {
			return errors.New("TSNUGET_S3_BUCKET must be set when using S3 storage")
		}
		if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			return errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set when using S3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	return nil
}

// CacheMaxAge is the client-visible freshness of catalog responses.
func (c *Config) CacheMaxAge() time.Duration {
	return c.RefreshInterval / 2
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal) * time.Second
		}
	}
	return defaultValue
}

func getFloatDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(floatVal * float64(time.Second))
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value != "0" && value != "no" && value != "off" && value != "false"
}
