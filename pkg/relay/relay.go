// Package relay ties the code generator, registry and upload store together
// into the upload, download and expiry operations.
package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peerlink/peerlink/pkg/codegen"
	"github.com/peerlink/peerlink/pkg/domain"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/registry"
	"github.com/peerlink/peerlink/pkg/storage"
)

const (
	// DefaultTTL is how long an unretrieved session stays downloadable.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is the period between expiry sweeps.
	DefaultSweepInterval = 5 * time.Minute

	// DefaultMaxRequestSize caps a whole upload request body.
	DefaultMaxRequestSize int64 = 500 << 20

	// PlaceholderName is used when a client sends no usable filename.
	PlaceholderName = "unnamed-file"

	chunkSize = 32 << 10
)

// Options configures a Service.
type Options struct {
	TTL            time.Duration
	MaxFileSize    int64 // 0 means only MaxRequestSize applies
	MaxRequestSize int64
	Clock          Clock
	Tokens         func() string
}

// Service owns the session lifecycle: ingest, retrieval and expiry.
type Service struct {
	codes    *codegen.Generator
	sessions *registry.Registry
	store    *storage.Store
	logger   *logging.Logger
	opts     Options

	mu      sync.Mutex
	pending map[string]struct{} // storage keys still being written
	claims  map[string]struct{} // storage keys being downloaded
}

// NewService wires a service. Zero options fall back to the defaults.
func NewService(store *storage.Store, sessions *registry.Registry, codes *codegen.Generator, logger *logging.Logger, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	if opts.MaxFileSize < 0 {
		opts.MaxFileSize = 0
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Tokens == nil {
		opts.Tokens = uuid.NewString
	}
	if codes == nil {
		codes = codegen.New()
	}
	if sessions == nil {
		sessions = registry.New()
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Service{
		codes:    codes,
		sessions: sessions,
		store:    store,
		logger:   logger,
		opts:     opts,
		pending:  make(map[string]struct{}),
		claims:   make(map[string]struct{}),
	}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Store returns the backing upload store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Sessions returns the live session registry.
func (s *Service) Sessions() *registry.Registry {
	return s.sessions
}

// Lookup returns the live session for code, if any.
func (s *Service) Lookup(code int) (domain.Session, bool) {
	return s.sessions.Get(code)
}

// Close retires every live session and deletes its file. Uploads do not
// survive a restart, so nothing is left behind for the next process.
func (s *Service) Close() error {
	var firstErr error
	for _, sess := range s.sessions.Drain() {
		if err := s.store.Remove(sess.StorageKey); err != nil {
			s.logger.Error("failed to remove file on shutdown", "code", sess.Code, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// retire removes the binding first and the file second, so a code never
// resolves to a missing file. A binding that is already gone counts as done;
// whoever removed it owns the file.
func (s *Service) retire(sess domain.Session) (bool, error) {
	if _, ok := s.sessions.RemoveIf(sess.Code, sess.StorageKey); !ok {
		return false, nil
	}
	if err := s.store.Remove(sess.StorageKey); err != nil {
		return true, domain.Internal("failed to delete stored file", err)
	}
	return true, nil
}

func (s *Service) markPending(key string) {
	s.mu.Lock()
	s.pending[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Service) clearPending(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// claim checks sess out for a single download. It fails while another
// download of the same session holds the claim.
func (s *Service) claim(sess domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.claims[sess.StorageKey]; busy {
		return false
	}
	s.claims[sess.StorageKey] = struct{}{}
	return true
}

func (s *Service) release(sess domain.Session) {
	s.mu.Lock()
	delete(s.claims, sess.StorageKey)
	s.mu.Unlock()
}

func (s *Service) isPending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}
