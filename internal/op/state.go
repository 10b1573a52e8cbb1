package op

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/idstate"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// FilterFinished drops items whose identifier is already finished in the
// stage's namespace, preserving input order. This is how every stage
// achieves at-most-once processing across runs.
type FilterFinished struct {
	pipeline.BaseOperator

	store *idstate.Store
	idOf  IDFunc
}

var _ pipeline.Operator = (*FilterFinished)(nil)

// NewFilterFinished creates the filter over the given state store.
func NewFilterFinished(store *idstate.Store, idOf IDFunc) *FilterFinished {
	return &FilterFinished{store: store, idOf: idOf}
}

// Process returns the items that are not finished yet.
func (f *FilterFinished) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	states, err := f.store.All()
	if err != nil {
		return nil, err
	}

	ids, err := extractIDs(items, f.idOf)
	if err != nil {
		return nil, err
	}

	kept := lo.Filter(items, func(_ any, i int) bool {
		return states[ids[i]] != idstate.StateFinished
	})

	logger.Info(ctx, "Filtered finished items",
		"namespace", f.store.Namespace(), "in", len(items), "kept", len(kept))
	return kept, nil
}

// MarkFinished marks every item's identifier finished and passes the
// items through. It must run after the stage's side effect succeeded.
type MarkFinished struct {
	pipeline.BaseOperator

	store *idstate.Store
	idOf  IDFunc
}

var _ pipeline.Operator = (*MarkFinished)(nil)

// NewMarkFinished creates the marker over the given state store.
func NewMarkFinished(store *idstate.Store, idOf IDFunc) *MarkFinished {
	return &MarkFinished{store: store, idOf: idOf}
}

// Process marks the items finished and returns them unchanged.
func (m *MarkFinished) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	ids, err := extractIDs(items, m.idOf)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := m.store.MarkFinished(ids); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "Marked items finished",
		"namespace", m.store.Namespace(), "count", len(ids))
	return items, nil
}

// InsertPending records string identifiers as pending and passes them
// through. Identifiers that are already finished stay finished.
type InsertPending struct {
	pipeline.BaseOperator

	store *idstate.Store
}

var _ pipeline.Operator = (*InsertPending)(nil)

// NewInsertPending creates the operator over the given state store.
func NewInsertPending(store *idstate.Store) *InsertPending {
	return &InsertPending{store: store}
}

// Process stores the identifiers as pending and returns them unchanged.
func (p *InsertPending) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i, item := range items {
		id, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("op: expected string id, got %T", item)
		}
		ids[i] = id
	}
	if len(ids) > 0 {
		if err := p.store.StorePending(ids); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "Stored pending ids",
		"namespace", p.store.Namespace(), "count", len(ids))
	return items, nil
}

// GetPending emits the pending identifiers of a namespace, sorted. It
// ignores its input.
type GetPending struct {
	pipeline.BaseOperator

	store *idstate.Store
}

var _ pipeline.Operator = (*GetPending)(nil)

// NewGetPending creates the operator over the given state store.
func NewGetPending(store *idstate.Store) *GetPending {
	return &GetPending{store: store}
}

// Process returns []any of pending identifier strings.
func (g *GetPending) Process(ctx context.Context, _ any) (any, error) {
	ids, err := g.store.Pending()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Read pending ids",
		"namespace", g.store.Namespace(), "count", len(ids))
	return lo.ToAnySlice(ids), nil
}

func extractIDs(items []any, idOf IDFunc) ([]string, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		id, err := idOf(item)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
