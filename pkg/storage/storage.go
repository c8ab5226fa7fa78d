// Package storage is the flat, afero-backed file area holding uploads.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that are not a single plain file name.
var ErrInvalidKey = errors.New("invalid storage key")

// Store keeps one file per key directly under its root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// New roots a store at dir on fs, creating the directory if needed.
func New(fs afero.Fs, dir string) (*Store, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload directory: %w", err)
	}
	if !exists {
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	return &Store{
		fs:   afero.NewBasePathFs(fs, dir),
		root: dir,
	}, nil
}

// Root returns the directory the store lives in.
func (s *Store) Root() string {
	return s.root
}

// ValidKey reports whether key names a single file with no path components.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00")
}

// Create opens a new file for writing. It fails if key already exists.
func (s *Store) Create(key string) (afero.File, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s.fs.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
}

// Open opens an existing file for reading.
func (s *Store) Open(key string) (afero.File, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s.fs.Open(key)
}

// Remove deletes key. Removing a missing file succeeds.
func (s *Store) Remove(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) (bool, error) {
	if !ValidKey(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return afero.Exists(s.fs, key)
}

// Stat returns file info for key.
func (s *Store) Stat(key string) (os.FileInfo, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s.fs.Stat(key)
}

// ModTime returns the last modification time of key.
func (s *Store) ModTime(key string) (time.Time, error) {
	info, err := s.Stat(key)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Size returns the stored length of key in bytes.
func (s *Store) Size(key string) (int64, error) {
	info, err := s.Stat(key)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// List returns every regular file key, sorted.
func (s *Store) List() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to list upload directory: %w", err)
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			keys = append(keys, info.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}
