package relay

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/peerlink/peerlink/pkg/domain"
)

// Ingest streams r into storage under a fresh key and registers a session
// for it. Nothing is registered unless the whole stream was written, and a
// failed write leaves no file behind.
func (s *Service) Ingest(ctx context.Context, r io.Reader, suggestedName string) (domain.Session, error) {
	name := SanitizeName(suggestedName)
	key := StorageKey(s.opts.Tokens(), name)

	s.markPending(key)
	defer s.clearPending(key)

	f, err := s.store.Create(key)
	if err != nil {
		return domain.Session{}, domain.Internal("failed to create stored file", err)
	}

	size, err := s.copyStream(ctx, f, r)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = domain.Internal("failed to close stored file", closeErr)
	}
	if err != nil {
		s.discard(key)
		if errors.Is(err, domain.ErrTooLarge) {
			s.logger.Warn("rejected oversize upload", "filename", name, "received", humanize.Bytes(uint64(size)))
		}
		return domain.Session{}, err
	}

	sess, err := s.sessions.Register(s.codes, domain.Session{
		StorageKey:   key,
		OriginalName: name,
		Size:         size,
		CreatedAt:    s.opts.Clock.Now(),
	})
	if err != nil {
		s.discard(key)
		return domain.Session{}, err
	}

	s.logger.Info("upload stored", "code", sess.Code, "filename", name, "size", humanize.Bytes(uint64(size)))
	return sess, nil
}

// IngestMultipart stores the first file part of a multipart body. Other
// parts are drained and ignored. A body without any file part is a bad
// request.
func (s *Service) IngestMultipart(ctx context.Context, mr *multipart.Reader) (domain.Session, error) {
	var (
		sess  domain.Session
		found bool
	)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if found {
				s.rollback(sess)
			}
			return domain.Session{}, s.classifyPartError(ctx, err)
		}

		name, isFile := partFilename(part)
		if found || !isFile {
			_, err = io.Copy(io.Discard, contextReader{ctx: ctx, r: part})
			part.Close()
			if err != nil {
				if found {
					s.rollback(sess)
				}
				return domain.Session{}, s.classifyReadError(err)
			}
			continue
		}

		sess, err = s.Ingest(ctx, part, name)
		part.Close()
		if err != nil {
			return domain.Session{}, err
		}
		found = true
	}

	if !found {
		return domain.Session{}, domain.BadRequest("no file uploaded")
	}
	return sess, nil
}

func (s *Service) classifyPartError(ctx context.Context, err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return domain.TooLarge(maxBytes.Limit)
	case ctx.Err() != nil, errors.Is(err, io.ErrUnexpectedEOF):
		return domain.TransferAborted(err)
	default:
		return domain.BadRequest("malformed multipart body").WithError(err)
	}
}

// rollback undoes a registered upload when the rest of its request failed.
func (s *Service) rollback(sess domain.Session) {
	if _, err := s.retire(sess); err != nil {
		s.logger.Error("failed to roll back upload", "code", sess.Code, "error", err)
	}
}

func (s *Service) discard(key string) {
	if err := s.store.Remove(key); err != nil {
		s.logger.Error("failed to remove partial upload", "error", err)
	}
}

// partFilename reports the filename parameter of a part, and whether the
// part is a file at all. An empty filename still marks a file part.
func partFilename(part *multipart.Part) (string, bool) {
	cd := part.Header.Get("Content-Disposition")
	if cd == "" {
		return "", false
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	return name, ok
}
