// Package kvstore implements the durable key-value bus between pipeline
// runs. One namespace is one JSON document on disk; writes replace the
// whole document atomically so readers never observe a partial file.
package kvstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/paperdag/paperdag/internal/fileutil"
)

// Entry is a stored value with the time it was written.
type Entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store is a namespaced key-value store backed by a single JSON file at
// <dir>/<namespace>.json. A file lock serializes writers across processes;
// the mutex serializes writers sharing this value.
type Store struct {
	dir       string
	namespace string
	flk       *flock.Flock
	mu        sync.Mutex
}

// New creates the store directory if needed and returns the store.
func New(dir, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace must not be empty")
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{
		dir:       dir,
		namespace: namespace,
		flk:       flock.New(filepath.Join(dir, namespace+".lock")),
	}, nil
}

// DocumentPath returns the path of the namespace document under dir.
func DocumentPath(dir, namespace string) string {
	return filepath.Join(dir, namespace+".json")
}

// Namespace returns the namespace this store persists.
func (s *Store) Namespace() string {
	return s.namespace
}

// FilePath returns the path of the persisted document.
func (s *Store) FilePath() string {
	return DocumentPath(s.dir, s.namespace)
}

// Read returns the whole namespace. A missing file yields an empty map.
func (s *Store) Read() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if _, err := fileutil.ReadJSON(s.FilePath(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Write replaces the whole namespace.
func (s *Store) Write(entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(entries)
}

// Merge reads the namespace, overwrites the given keys with fresh
// timestamps, and writes the result back. A nil raw value is stored as
// JSON null.
func (s *Store) Merge(items map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("failed to lock namespace %s: %w", s.namespace, err)
	}
	defer func() { _ = s.flk.Unlock() }()

	entries, err := s.Read()
	if err != nil {
		return err
	}

	now := time.Now()
	for key, value := range items {
		entries[key] = Entry{Value: value, StoredAt: now}
	}

	return fileutil.WriteJSONAtomic(s.FilePath(), entries)
}

func (s *Store) writeLocked(entries map[string]Entry) error {
	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("failed to lock namespace %s: %w", s.namespace, err)
	}
	defer func() { _ = s.flk.Unlock() }()

	return fileutil.WriteJSONAtomic(s.FilePath(), entries)
}
