package pipeline

import "context"

// Operator is a unit of work scheduled by a Pipeline.
//
// Process receives the value produced by its dependency (or the run's
// initial input when it has none; or a []any of dependency results when it
// has several) and returns the value passed downstream. Process runs
// concurrently with other operators of the same layer and must not depend
// on their side effects.
//
// Setup is called by the engine before the operator's first Process of a
// run and must be idempotent. Cleanup is called on run teardown for every
// operator whose Setup ran, and must release whatever Setup acquired.
type Operator interface {
	Setup(ctx context.Context) error
	Process(ctx context.Context, input any) (any, error)
	Cleanup(ctx context.Context) error
}

// BaseOperator provides no-op Setup and Cleanup for operators that do not
// hold resources.
type BaseOperator struct{}

// Setup implements Operator.
func (BaseOperator) Setup(_ context.Context) error { return nil }

// Cleanup implements Operator.
func (BaseOperator) Cleanup(_ context.Context) error { return nil }
