package workflow

import (
	"path/filepath"
	"time"

	"github.com/paperdag/paperdag/internal/fileutil"
	"github.com/paperdag/paperdag/internal/idstate"
	"github.com/paperdag/paperdag/internal/kvstore"
)

// StageStatus counts the identifiers of one id-state namespace by state.
type StageStatus struct {
	Namespace string
	Pending   int
	Finished  int
}

// StoreStatus describes one key-value document.
type StoreStatus struct {
	Namespace string
	Documents int
	UpdatedAt time.Time
}

// StateDir returns the directory holding the id-state documents under the
// storage base path.
func StateDir(basePath string) string {
	return filepath.Join(basePath, stateDirName)
}

// Status summarizes the stage progress and the stores under the storage
// base path without creating anything on disk. Stages cover every
// namespace with a persisted document; stores cover the documents the
// workflows write, present or not.
func Status(basePath string) ([]StageStatus, []StoreStatus, error) {
	namespaces, err := idstate.ListNamespaces(StateDir(basePath))
	if err != nil {
		return nil, nil, err
	}

	stages := make([]StageStatus, 0, len(namespaces))
	for _, ns := range namespaces {
		states, err := openStates(basePath, ns)
		if err != nil {
			return nil, nil, err
		}
		all, err := states.All()
		if err != nil {
			return nil, nil, err
		}
		stage := StageStatus{Namespace: ns}
		for _, state := range all {
			switch state {
			case idstate.StatePending:
				stage.Pending++
			case idstate.StateFinished:
				stage.Finished++
			}
		}
		stages = append(stages, stage)
	}

	var stores []StoreStatus
	for _, ns := range []string{kvFetchedPapers, kvFilteredPapers, kvPaperSummaries} {
		store := StoreStatus{Namespace: ns}
		entries := make(map[string]kvstore.Entry)
		ok, err := fileutil.ReadJSON(kvstore.DocumentPath(filepath.Join(basePath, ns), ns), &entries)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			store.Documents = len(entries)
			for _, entry := range entries {
				if entry.StoredAt.After(store.UpdatedAt) {
					store.UpdatedAt = entry.StoredAt
				}
			}
		}
		stores = append(stores, store)
	}

	return stages, stores, nil
}
