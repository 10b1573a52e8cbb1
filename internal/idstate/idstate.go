// Package idstate tracks, per namespace, which item identifiers a stage
// has finished. Stages consult it to skip finished work on re-runs, which
// is what bounds every side effect to at most one execution per item.
package idstate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/paperdag/paperdag/internal/fileutil"
)

// State of an identifier within a namespace. An absent identifier counts
// as never seen, which is treated like pending by FilterFinished.
type State string

const (
	StatePending  State = "pending"
	StateFinished State = "finished"
)

const (
	stateDirName    = "pending_states"
	stateFileSuffix = "_states.json"
)

// Store persists map[id]State for one namespace at
// <baseDir>/pending_states/<namespace>_states.json.
//
// Every operation re-reads the document, so independent Store values over
// the same namespace stay coherent. Mutations hold a file lock across the
// read-modify-write.
type Store struct {
	dir       string
	namespace string
	flk       *flock.Flock
	mu        sync.Mutex
}

// New creates the state directory if needed and returns the store.
func New(baseDir, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace must not be empty")
	}
	dir := filepath.Join(baseDir, stateDirName)
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{
		dir:       dir,
		namespace: namespace,
		flk:       flock.New(filepath.Join(dir, namespace+".lock")),
	}, nil
}

// Namespace returns the namespace this store tracks.
func (s *Store) Namespace() string {
	return s.namespace
}

// FilePath returns the path of the persisted document.
func (s *Store) FilePath() string {
	return filepath.Join(s.dir, s.namespace+stateFileSuffix)
}

// All returns the whole namespace. A missing file yields an empty map.
func (s *Store) All() (map[string]State, error) {
	states := make(map[string]State)
	if _, err := fileutil.ReadJSON(s.FilePath(), &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Pending returns the pending identifiers, sorted.
func (s *Store) Pending() ([]string, error) {
	states, err := s.All()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, state := range states {
		if state == StatePending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// IsFinished reports whether the identifier is finished.
func (s *Store) IsFinished(id string) (bool, error) {
	states, err := s.All()
	if err != nil {
		return false, err
	}
	return states[id] == StateFinished, nil
}

// StorePending marks the identifiers pending. Identifiers that are
// already finished keep their state: finished never regresses.
func (s *Store) StorePending(ids []string) error {
	return s.update(func(states map[string]State) {
		for _, id := range ids {
			if states[id] != StateFinished {
				states[id] = StatePending
			}
		}
	})
}

// MarkFinished marks the identifiers finished unconditionally.
func (s *Store) MarkFinished(ids []string) error {
	return s.update(func(states map[string]State) {
		for _, id := range ids {
			states[id] = StateFinished
		}
	})
}

func (s *Store) update(apply func(map[string]State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("failed to lock namespace %s: %w", s.namespace, err)
	}
	defer func() { _ = s.flk.Unlock() }()

	states, err := s.All()
	if err != nil {
		return err
	}
	apply(states)
	return fileutil.WriteJSONAtomic(s.FilePath(), states)
}

// ListNamespaces returns the namespaces with a persisted state document
// under baseDir, sorted.
func ListNamespaces(baseDir string) ([]string, error) {
	pattern := filepath.Join(baseDir, stateDirName, "*"+stateFileSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list state files: %w", err)
	}
	namespaces := make([]string, 0, len(matches))
	for _, m := range matches {
		namespaces = append(namespaces, strings.TrimSuffix(filepath.Base(m), stateFileSuffix))
	}
	sort.Strings(namespaces)
	return namespaces, nil
}
