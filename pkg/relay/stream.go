package relay

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/peerlink/peerlink/pkg/domain"
)

var errFileTooLarge = errors.New("file exceeds size limit")

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// capReader passes through at most limit bytes and fails on the first byte
// past it, unlike io.LimitReader which would silently truncate.
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errFileTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n + int(c.remaining), errFileTooLarge
	}
	return n, err
}

// sourceReader remembers the last error its reader returned, so a failed
// copy can be blamed on the right side.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// copyStream copies src to dst in fixed chunks. Read failures come back
// classified; write failures are internal faults.
func (s *Service) copyStream(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var r io.Reader = contextReader{ctx: ctx, r: src}
	if s.opts.MaxFileSize > 0 {
		r = &capReader{r: r, remaining: s.opts.MaxFileSize}
	}
	tracked := &sourceReader{r: r}

	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(struct{ io.Writer }{dst}, tracked, buf)
	if err == nil {
		return n, nil
	}
	if tracked.err != nil && errors.Is(err, tracked.err) {
		return n, s.classifyReadError(err)
	}
	return n, domain.Internal("failed to write stored file", err)
}

// classifyReadError maps a failed read of the inbound body.
func (s *Service) classifyReadError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, errFileTooLarge):
		return domain.TooLarge(s.opts.MaxFileSize)
	case errors.As(err, &maxBytes):
		return domain.TooLarge(maxBytes.Limit)
	default:
		return domain.TransferAborted(err)
	}
}
