package op

import (
	"context"

	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// Limit passes through at most n items. A non-positive n yields an empty
// list.
type Limit struct {
	pipeline.BaseOperator

	n int
}

var _ pipeline.Operator = (*Limit)(nil)

// NewLimit creates the operator.
func NewLimit(n int) *Limit {
	return &Limit{n: n}
}

// Process returns the first n items.
func (l *Limit) Process(_ context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}
	if l.n <= 0 {
		return []any{}, nil
	}
	if len(items) > l.n {
		items = items[:l.n]
	}
	return items, nil
}

// CustomFunc is a stateless list transform.
type CustomFunc func(ctx context.Context, items []any) ([]any, error)

// Custom wraps a stateless list transform (sorting, projection, keep-if
// filters) as an operator.
type Custom struct {
	pipeline.BaseOperator

	name string
	fn   CustomFunc
}

var _ pipeline.Operator = (*Custom)(nil)

// NewCustom creates the operator. The name only appears in logs.
func NewCustom(name string, fn CustomFunc) *Custom {
	return &Custom{name: name, fn: fn}
}

// Process applies the transform.
func (c *Custom) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}
	out, err := c.fn(ctx, items)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Applied transform", "transform", c.name, "in", len(items), "out", len(out))
	return out, nil
}
