package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/peerlink/peerlink/pkg/domain"
)

// sniffLen is how much of a stored file is read for content detection.
const sniffLen = 3 << 10

// extensionTypes covers the formats the bundled web client sends most.
var extensionTypes = map[string]string{
	".mkv":  "video/x-matroska",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".zip":  "application/zip",
	".rar":  "application/vnd.rar",
	".7z":   "application/x-7z-compressed",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// ContentType picks the response type for a stored file. Specific content
// matches win; generic ones defer to the filename extension.
func ContentType(head []byte, name string) string {
	detected := mimetype.Detect(head)
	if !detected.Is("application/octet-stream") && !detected.Is("text/plain") {
		return detected.String()
	}
	if ct, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return detected.String()
}

// errRetiredDuringSend reports a session that expired while its bytes were
// still being sent.
var errRetiredDuringSend = errors.New("session retired during download")

// Download is an opened, checked-out session ready to be streamed once.
type Download struct {
	Session     domain.Session
	ContentType string
	Size        int64

	svc         *Service
	file        afero.File
	fileOnce    sync.Once
	fileErr     error
	releaseOnce sync.Once
}

// Filename is the name the receiver should save the file under.
func (d *Download) Filename() string {
	return d.Session.OriginalName
}

// Retrieve opens the file bound to code and checks the session out. While a
// download holds the session, other retrievals of the code answer not found.
// The session stays live until Send has delivered every byte.
func (s *Service) Retrieve(ctx context.Context, code int) (*Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.TransferAborted(err)
	}
	if !s.codes.Contains(code) {
		return nil, domain.NotFound()
	}

	sess, ok := s.Lookup(code)
	if !ok {
		return nil, domain.NotFound()
	}
	if !s.claim(sess) {
		s.logger.Debug("download already in progress", "code", code)
		return nil, domain.NotFound()
	}

	dl, err := s.open(sess)
	if err != nil {
		s.release(sess)
		return nil, err
	}
	return dl, nil
}

func (s *Service) open(sess domain.Session) (*Download, error) {
	exists, err := s.store.Exists(sess.StorageKey)
	if err != nil {
		return nil, domain.Internal("failed to check stored file", err)
	}
	if !exists {
		s.logger.Warn("live session has no stored file", "code", sess.Code)
		return nil, domain.NotFound()
	}

	f, err := s.store.Open(sess.StorageKey)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("live session has no stored file", "code", sess.Code)
		return nil, domain.NotFound()
	}
	if err != nil {
		return nil, domain.Internal("failed to open stored file", err)
	}

	size, err := s.store.Size(sess.StorageKey)
	if err != nil {
		f.Close()
		return nil, domain.Internal("failed to stat stored file", err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		f.Close()
		return nil, domain.Internal("failed to read stored file", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, domain.Internal("failed to rewind stored file", err)
	}

	return &Download{
		Session:     sess,
		ContentType: ContentType(head[:n], sess.OriginalName),
		Size:        size,
		svc:         s,
		file:        f,
	}, nil
}

// Send streams the file to w and retires the session once every byte was
// written. A failed or short transfer leaves the session and file in place
// so the code can be retried. A session the sweeper retired mid-transfer
// fails as aborted. Send closes the download.
func (d *Download) Send(ctx context.Context, w io.Writer) error {
	defer d.Close()

	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(struct{ io.Writer }{w}, contextReader{ctx: ctx, r: d.file}, buf)
	if closeErr := d.closeFile(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err == nil && n != d.Size {
		err = fmt.Errorf("sent %d of %d bytes: %w", n, d.Size, io.ErrUnexpectedEOF)
	}
	if err != nil {
		d.svc.logger.Warn("download interrupted", "code", d.Session.Code, "sent", humanize.Bytes(uint64(n)), "error", err)
		return domain.TransferAborted(err)
	}

	removed, err := d.svc.retire(d.Session)
	if err != nil {
		d.svc.logger.Error("failed to delete served file", "code", d.Session.Code, "error", err)
		return err
	}
	if !removed {
		d.svc.logger.Warn("session expired during download", "code", d.Session.Code)
		return domain.TransferAborted(errRetiredDuringSend)
	}
	d.svc.logger.Info("file served and deleted", "code", d.Session.Code, "size", humanize.Bytes(uint64(n)))
	return nil
}

// Close releases the file handle and the checkout without retiring the
// session. It is safe to call more than once.
func (d *Download) Close() error {
	err := d.closeFile()
	d.releaseOnce.Do(func() {
		d.svc.release(d.Session)
	})
	return err
}

func (d *Download) closeFile() error {
	d.fileOnce.Do(func() {
		d.fileErr = d.file.Close()
	})
	return d.fileErr
}
