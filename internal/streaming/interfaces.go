package streaming

import (
	"context"
	"io"
)

// StreamResult describes a completed download.
type StreamResult struct {
	Size int64
}

// Downloader fetches a URL in full into a writer
type Downloader interface {
	// Download copies the response body of url into w. Any non-200 status is
	// an error and nothing is written.
	Download(ctx context.Context, url string, w io.Writer) (*StreamResult, error)
}

// BodyServer streams a finished artifact to a client
type BodyServer interface {
	// ServeReader copies reader into writer, stopping when ctx is done
	ServeReader(ctx context.Context, writer io.Writer, reader io.Reader, size int64) (int64, error)
}
