// Package pipeline implements the DAG engine that schedules named
// operators. Operators are grouped into layers by their dependencies;
// layers run one after another, the nodes inside a layer concurrently.
// Results travel only through the run's result map.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/paperdag/paperdag/internal/logger"
)

// InitialKey is the result-map key that holds the initial input of a run.
const InitialKey = "initial"

var (
	// ErrDuplicateOperator is returned when an operator name is already taken.
	ErrDuplicateOperator = errors.New("operator name already exists")
	// ErrUnknownDependency is returned when a dependency has not been added yet.
	ErrUnknownDependency = errors.New("dependency does not exist")
	// ErrCircularDependency is returned when the graph has no valid execution order.
	ErrCircularDependency = errors.New("circular dependency detected")
)

// Pipeline is a run-scoped acyclic graph of named operators.
// It is not safe to call AddOperator concurrently with Execute.
type Pipeline struct {
	mu    sync.Mutex
	nodes map[string]*Node
	order [][]string
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{nodes: make(map[string]*Node)}
}

// AddOperator adds a named operator. Every dependency must already be
// present. The execution order is recomputed on each call so graph errors
// surface at construction time.
//
// When a node has several dependencies, its Process input is a []any of
// the dependency results in the order deps are listed here.
func (p *Pipeline) AddOperator(name string, op Operator, deps ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" {
		return fmt.Errorf("operator name must not be empty")
	}
	if name == InitialKey {
		return fmt.Errorf("operator name %q is reserved", InitialKey)
	}
	if op == nil {
		return fmt.Errorf("operator %q must not be nil", name)
	}
	if _, ok := p.nodes[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateOperator, name)
	}

	seen := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		if _, ok := p.nodes[dep]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDependency, dep)
		}
		if _, ok := seen[dep]; ok {
			return fmt.Errorf("duplicate dependency %q for operator %q", dep, name)
		}
		seen[dep] = struct{}{}
	}

	p.nodes[name] = newNode(name, op, deps)

	order, err := computeOrder(p.nodes)
	if err != nil {
		delete(p.nodes, name)
		return err
	}
	p.order = order

	return nil
}

// Nodes returns the nodes sorted by name.
func (p *Pipeline) Nodes() []*Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	nodes := make([]*Node, 0, len(p.nodes))
	for _, node := range p.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].name < nodes[j].name })
	return nodes
}

// ExecutionOrder returns the layered order, names sorted within a layer.
func (p *Pipeline) ExecutionOrder() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := make([][]string, len(p.order))
	for i, layer := range p.order {
		order[i] = append([]string(nil), layer...)
	}
	return order
}

// Execute runs the pipeline to completion and returns the result of every
// node keyed by name (plus InitialKey when initial is non-nil).
//
// Node states are reset first, so a pipeline can be executed repeatedly.
// The first operator error aborts the run: layers after the failing one do
// not start, while the other operators of the failing layer run to
// completion. Cleanup runs for every operator whose Setup ran.
func (p *Pipeline) Execute(ctx context.Context, initial any) (map[string]any, error) {
	p.mu.Lock()
	order := p.order
	nodes := p.nodes
	p.mu.Unlock()

	runID := uuid.New().String()
	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("run_id", runID))
	logger.Info(ctx, "Pipeline run started", "operators", len(nodes))

	for _, node := range nodes {
		node.reset()
	}
	defer p.cleanupRun(ctx, nodes)

	results := make(map[string]any, len(nodes)+1)
	if initial != nil {
		results[InitialKey] = initial
	}

	for _, layer := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.executeLayer(ctx, nodes, layer, results, initial); err != nil {
			logger.Error(ctx, "Pipeline run failed", "err", err)
			return nil, err
		}
	}

	logger.Info(ctx, "Pipeline run finished", "results", len(results))
	return results, nil
}

// executeLayer runs every node of the layer concurrently and merges their
// outputs into results once all of them returned.
func (p *Pipeline) executeLayer(ctx context.Context, nodes map[string]*Node, layer []string, results map[string]any, initial any) error {
	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		lastErr error
	)
	setErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if lastErr == nil {
			lastErr = err
		}
	}

	outputs := make([]any, len(layer))

	for i, name := range layer {
		node := nodes[name]
		input := nodeInput(node, results, initial)

		wg.Add(1)
		node.setRunning()
		logger.Debug(ctx, "Operator started", "operator", node.Name())

		go func(i int, node *Node, input any) {
			defer wg.Done()
			defer func() {
				if panicObj := recover(); panicObj != nil {
					stack := string(debug.Stack())
					err := fmt.Errorf("operator %q panicked: %v", node.Name(), panicObj)
					logger.Error(ctx, "Panic recovered", "operator", node.Name(), "err", err, "stack", stack)
					node.setFailed(err)
					setErr(err)
				}
			}()

			if !node.isSetupDone() {
				if err := node.operator.Setup(ctx); err != nil {
					err = fmt.Errorf("operator %q setup failed: %w", node.Name(), err)
					node.setFailed(err)
					setErr(err)
					return
				}
				node.markSetupDone()
			}

			out, err := node.operator.Process(ctx, input)
			if err != nil {
				err = fmt.Errorf("operator %q failed: %w", node.Name(), err)
				logger.Error(ctx, "Operator failed", "operator", node.Name(), "err", err)
				node.setFailed(err)
				setErr(err)
				return
			}

			node.setCompleted(out)
			outputs[i] = out
			logger.Debug(ctx, "Operator finished", "operator", node.Name())
		}(i, node, input)
	}

	wg.Wait()

	if lastErr != nil {
		return lastErr
	}
	for i, name := range layer {
		results[name] = outputs[i]
	}
	return nil
}

// cleanupRun tears down every operator whose Setup ran. It uses a context
// that survives cancellation so resources are released even on abort.
func (p *Pipeline) cleanupRun(ctx context.Context, nodes map[string]*Node) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, node := range nodes {
		if !node.takeSetupDone() {
			continue
		}
		if err := node.operator.Cleanup(cleanupCtx); err != nil {
			logger.Warn(ctx, "Operator cleanup failed", "operator", node.Name(), "err", err)
		}
	}
}

// nodeInput assembles the Process input for a node: the initial value for
// source nodes, the single dependency result, or the list of dependency
// results in declaration order.
func nodeInput(node *Node, results map[string]any, initial any) any {
	deps := node.deps
	switch len(deps) {
	case 0:
		return initial
	case 1:
		return results[deps[0]]
	default:
		inputs := make([]any, 0, len(deps))
		for _, dep := range deps {
			inputs = append(inputs, results[dep])
		}
		return inputs
	}
}

// computeOrder peels the graph layer by layer: a node is ready once none
// of its dependencies remain. No progress with nodes remaining means the
// graph has a cycle.
func computeOrder(nodes map[string]*Node) ([][]string, error) {
	remaining := make(map[string]struct{}, len(nodes))
	for name := range nodes {
		remaining[name] = struct{}{}
	}

	var order [][]string
	for len(remaining) > 0 {
		var layer []string
		for name := range remaining {
			ready := true
			for _, dep := range nodes[name].deps {
				if _, ok := remaining[dep]; ok {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, name)
			}
		}

		if len(layer) == 0 {
			return nil, ErrCircularDependency
		}

		sort.Strings(layer)
		order = append(order, layer)
		for _, name := range layer {
			delete(remaining, name)
		}
	}

	return order, nil
}
