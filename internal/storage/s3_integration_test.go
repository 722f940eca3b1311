package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
S3 integration tests run against a real S3-compatible endpoint and are
skipped unless TEST_S3_ENDPOINT is set.

  TEST_S3_ENDPOINT, TEST_S3_ACCESS_KEY, TEST_S3_SECRET_KEY, TEST_S3_BUCKET
  TEST_S3_USE_SSL (default false), TEST_S3_FORCE_PATH_STYLE (default true)

For a local MinIO:

  export TEST_S3_ENDPOINT=localhost:9000
  export TEST_S3_ACCESS_KEY=minioadmin TEST_S3_SECRET_KEY=minioadmin
  export TEST_S3_BUCKET=tsnuget-test
  go test -v ./internal/storage/
*/

func createTestS3Storage(t *testing.T) *S3Storage {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("TEST_S3_ENDPOINT not set")
	}

	storage, err := NewS3Storage(&S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("TEST_S3_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("TEST_S3_SECRET_KEY"),
		Bucket:          os.Getenv("TEST_S3_BUCKET"),
		Prefix:          "tsnuget-test/" + time.Now().Format("20060102150405"),
		UseSSL:          os.Getenv("TEST_S3_USE_SSL") == "true",
		ForcePathStyle:  os.Getenv("TEST_S3_FORCE_PATH_STYLE") != "false",
		PartSize:        5 * 1024 * 1024,
		ConnectTimeout:  30 * time.Second,
	})
	require.NoError(t, err, "Failed to create S3 storage for integration test")
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestS3Storage_IntegrationRoundTrip(t *testing.T) {
	s := createTestS3Storage(t)
	ctx := context.Background()
	key := "Foo-Bar.1.0.0.nupkg"
	content := strings.Repeat("nupkg", 1000)

	_, err := s.Stat(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	path := filepath.Join(t.TempDir(), "out.nupkg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	info, err := s.PutFile(ctx, key, path, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)

	reader, got, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, int64(len(content)), got.Size)

	stat, err := s.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), stat.Size)
}
