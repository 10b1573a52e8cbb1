package pipeline

import "sync"

// NodeStatus represents the status of a node within a run.
type NodeStatus int

const (
	NodeStatusPending NodeStatus = iota
	NodeStatusRunning
	NodeStatusCompleted
	NodeStatusFailed
)

func (s NodeStatus) String() string {
	switch s {
	case NodeStatusRunning:
		return "running"
	case NodeStatusCompleted:
		return "completed"
	case NodeStatusFailed:
		return "failed"
	case NodeStatusPending:
		fallthrough
	default:
		return "pending"
	}
}

// Node is a named operator with its dependencies and run state. The
// pipeline owns the node; state transitions happen only during Execute.
type Node struct {
	name     string
	operator Operator
	deps     []string

	mu        sync.Mutex
	status    NodeStatus
	result    any
	err       error
	setupDone bool
}

func newNode(name string, operator Operator, deps []string) *Node {
	return &Node{
		name:     name,
		operator: operator,
		deps:     deps,
	}
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Dependencies returns the dependency names in the order they were
// declared.
func (n *Node) Dependencies() []string {
	out := make([]string, len(n.deps))
	copy(out, n.deps)
	return out
}

// Status returns the node status.
func (n *Node) Status() NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Result returns the node result. It is set only when the status is
// NodeStatusCompleted.
func (n *Node) Result() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// Err returns the node error. It is set only when the status is
// NodeStatusFailed.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func (n *Node) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = NodeStatusPending
	n.result = nil
	n.err = nil
}

func (n *Node) setRunning() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = NodeStatusRunning
}

func (n *Node) setCompleted(result any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = NodeStatusCompleted
	n.result = result
}

func (n *Node) setFailed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = NodeStatusFailed
	n.err = err
}

func (n *Node) isSetupDone() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setupDone
}

func (n *Node) markSetupDone() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setupDone = true
}

// takeSetupDone clears the setup flag and reports its previous value, so
// cleanup runs exactly once per completed Setup.
func (n *Node) takeSetupDone() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	done := n.setupDone
	n.setupDone = false
	return done
}
