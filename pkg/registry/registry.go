// Package registry holds the live code -> session bindings.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/peerlink/peerlink/pkg/domain"
)

// Allocator picks a code that taken reports as free.
type Allocator interface {
	Allocate(taken func(int) bool) (int, error)
}

// Registry is a thread-safe session store keyed by access code. It is the
// only source of truth for whether a code still resolves to a file.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]domain.Session
	keys     map[string]int // storage key -> code
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[int]domain.Session),
		keys:     make(map[string]int),
	}
}

// Put inserts s under code. A code that is already live is an internal
// consistency fault, never a user error.
func (r *Registry) Put(code int, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[code]; exists {
		return domain.Internal(fmt.Sprintf("code %d is already registered", code), nil)
	}
	r.insertLocked(code, s)
	return nil
}

// Register allocates a free code and inserts s under it while holding the
// write lock, so two concurrent registrations never receive the same code.
func (r *Registry) Register(alloc Allocator, s domain.Session) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := alloc.Allocate(r.takenLocked)
	if err != nil {
		return domain.Session{}, err
	}
	if r.takenLocked(code) {
		return domain.Session{}, domain.Internal(fmt.Sprintf("allocator returned live code %d", code), nil)
	}

	return r.insertLocked(code, s), nil
}

// Get looks up a live session.
func (r *Registry) Get(code int) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[code]
	return s, ok
}

// Remove deletes and returns the session under code. Exactly one of any
// number of concurrent callers observes ok == true.
func (r *Registry) Remove(code int) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if ok {
		r.deleteLocked(code, s)
	}
	return s, ok
}

// RemoveIf removes the session under code only while it is still bound to
// storageKey. A stale caller holding a retired session cannot evict a newer
// session that reused the code.
func (r *Registry) RemoveIf(code int, storageKey string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok || s.StorageKey != storageKey {
		return domain.Session{}, false
	}
	r.deleteLocked(code, s)
	return s, true
}

// HasStorageKey reports whether any live session is backed by key.
func (r *Registry) HasStorageKey(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.keys[key]
	return ok
}

// Snapshot copies every live session, ordered by code.
func (r *Registry) Snapshot() []domain.Session {
	r.mu.RLock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Drain removes and returns every live session.
func (r *Registry) Drain() []domain.Session {
	r.mu.Lock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sessions = make(map[int]domain.Session)
	r.keys = make(map[string]int)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// takenLocked reports whether code is live. Caller must hold r.mu.
func (r *Registry) takenLocked(code int) bool {
	_, ok := r.sessions[code]
	return ok
}

func (r *Registry) insertLocked(code int, s domain.Session) domain.Session {
	s.Code = code
	r.sessions[code] = s
	r.keys[s.StorageKey] = code
	return s
}

func (r *Registry) deleteLocked(code int, s domain.Session) {
	delete(r.sessions, code)
	if r.keys[s.StorageKey] == code {
		delete(r.keys, s.StorageKey)
	}
}
