package streaming

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/phuslu/log"
)

const userAgent = "tsnuget/1.0.0"

// StatusError is returned when the remote answers with anything but 200.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

type httpDownloader struct {
	httpClient  *http.Client
	copyBufPool *sync.Pool
}

// NewDownloader creates a Downloader. A nil client gets a 5 minute timeout.
func NewDownloader(client *http.Client) Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}

	return &httpDownloader{
		httpClient:  client,
		copyBufPool: newBufferPool(),
	}
}

func newBufferPool() *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 64*1024)
			return &buf
		},
	}
}

// Download fetches url into w.
func (d *httpDownloader) Download(ctx context.Context, url string, w io.Writer) (*StreamResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	copyBufPtr := d.copyBufPool.Get().(*[]byte)
	defer d.copyBufPool.Put(copyBufPtr)

	size, err := io.CopyBuffer(w, resp.Body, *copyBufPtr)
	if err != nil {
		return nil, fmt.Errorf("streaming failed: %w", err)
	}
	if resp.ContentLength >= 0 && size != resp.ContentLength {
		return nil, fmt.Errorf("short body from %s: got %d of %d bytes", url, size, resp.ContentLength)
	}

	log.Debug().
		Str("url", url).
		Int64("size", size).
		Dur("duration", time.Since(start)).
		Msg("Download completed")

	return &StreamResult{Size: size}, nil
}
