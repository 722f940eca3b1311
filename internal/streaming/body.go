package streaming

import (
	"context"
	"io"
	"sync"
)

type bodyServer struct {
	copyBufPool *sync.Pool
}

func NewBodyServer() BodyServer {
	return &bodyServer{copyBufPool: newBufferPool()}
}

// ServeReader copies with a pooled buffer and checks ctx between chunks, so
// a client that goes away stops the copy at the next chunk.
func (s *bodyServer) ServeReader(ctx context.Context, writer io.Writer, reader io.Reader, size int64) (int64, error) {
	bufPtr := s.copyBufPool.Get().(*[]byte)
	defer s.copyBufPool.Put(bufPtr)
	buf := *bufPtr

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := reader.Read(buf)
		if n > 0 {
			w, werr := writer.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			if size >= 0 && written != size {
				return written, io.ErrUnexpectedEOF
			}
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
