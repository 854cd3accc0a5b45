// Package graph provides the dependency graph driving subtask scheduling.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// ErrDeadlock indicates the graph cannot make progress: a dependency cycle
// or a dependency referencing a subtask outside the decomposition.
var ErrDeadlock = errors.New("execution deadlock")

// NodeStatus represents the scheduling state of one execution node.
type NodeStatus int

const (
	// NodePending means the node has not been launched.
	NodePending NodeStatus = iota
	// NodeExecuting means the node is in flight.
	NodeExecuting
	// NodeCompleted means the node finished successfully.
	NodeCompleted
	// NodeFailed means the node failed or was blocked by a failed dependency.
	NodeFailed
)

// String returns a human-readable representation of the status.
func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeExecuting:
		return "executing"
	case NodeCompleted:
		return "completed"
	case NodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// node wraps one subtask with its mutable scheduling state. The dependency
// set shrinks as dependencies complete; the dependents set drives cascading
// readiness. Nodes exist only for the duration of one run.
type node struct {
	subtask    *models.Subtask
	deps       map[string]bool
	dependents map[string]bool
	status     NodeStatus
}

// ExecutionGraph is a directed acyclic graph of subtask dependencies.
// The graph is mutated only by the scheduler goroutine; executions report
// completion back through it, never concurrently touching node state.
type ExecutionGraph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New creates an empty execution graph.
func New() *ExecutionGraph {
	return &ExecutionGraph{nodes: make(map[string]*node)}
}

// Build constructs the graph from a subtask set. Fails with ErrDeadlock
// when a dependency references an unknown subtask or a cycle exists, since
// either would stall the run before it starts.
func (g *ExecutionGraph) Build(subtasks []*models.Subtask) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, st := range subtasks {
		g.nodes[st.ID] = &node{
			subtask:    st,
			deps:       make(map[string]bool, len(st.DependsOn)),
			dependents: make(map[string]bool),
			status:     NodePending,
		}
	}

	for _, st := range subtasks {
		for _, depID := range st.DependsOn {
			dep, exists := g.nodes[depID]
			if !exists {
				return fmt.Errorf("%w: subtask %s depends on unknown subtask %s", ErrDeadlock, st.ID, depID)
			}
			g.nodes[st.ID].deps[depID] = true
			dep.dependents[st.ID] = true
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return fmt.Errorf("%w: circular dependency involving subtask %s", ErrDeadlock, cycle[0])
	}

	return nil
}

// findCycleLocked runs a depth-first search with coloring and returns the
// IDs on a back edge, or nil. Caller must hold the lock.
func (g *ExecutionGraph) findCycleLocked() []string {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for depID := range g.nodes[id].deps {
			switch colors[depID] {
			case 1:
				cycle = []string{depID, id}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}

// Ready returns pending subtasks whose dependency sets are empty, ordered
// by decomposition order index. The stable order is the tie-break when
// ready subtasks compete for scarce agents.
func (g *ExecutionGraph) Ready() []*models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.Subtask
	for _, n := range g.nodes {
		if n.status == NodePending && len(n.deps) == 0 {
			ready = append(ready, n.subtask)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].OrderIndex < ready[j].OrderIndex
	})
	return ready
}

// MarkExecuting transitions a node to executing.
func (g *ExecutionGraph) MarkExecuting(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.status = NodeExecuting
	}
}

// MarkCompleted transitions a node to completed and strips its ID from
// every dependent's dependency set, enabling cascading readiness.
func (g *ExecutionGraph) MarkCompleted(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return
	}
	n.status = NodeCompleted
	for depID := range n.dependents {
		delete(g.nodes[depID].deps, id)
	}
}

// MarkFailed transitions a node to failed and cascades the failure to
// every transitive dependent, which can never become ready. Returns the
// IDs of the cascaded subtasks, not including the failed node itself, so
// the caller can record blocked results for them.
func (g *ExecutionGraph) MarkFailed(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	n.status = NodeFailed

	var blocked []string
	var cascade func(from *node)
	cascade = func(from *node) {
		for depID := range from.dependents {
			dependent := g.nodes[depID]
			if dependent.status != NodePending {
				continue
			}
			dependent.status = NodeFailed
			blocked = append(blocked, depID)
			cascade(dependent)
		}
	}
	cascade(n)

	sort.Strings(blocked)
	return blocked
}

// Executing returns the number of nodes currently in flight.
func (g *ExecutionGraph) Executing() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count(NodeExecuting)
}

// Pending returns the number of nodes not yet launched.
func (g *ExecutionGraph) Pending() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count(NodePending)
}

// Done returns true when every node is terminal.
func (g *ExecutionGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count(NodePending)+g.count(NodeExecuting) == 0
}

// count assumes the lock is held.
func (g *ExecutionGraph) count(status NodeStatus) int {
	n := 0
	for _, nd := range g.nodes {
		if nd.status == status {
			n++
		}
	}
	return n
}

// Subtask returns the subtask for an ID, or nil.
func (g *ExecutionGraph) Subtask(id string) *models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.subtask
	}
	return nil
}

// Status returns the scheduling status for an ID.
func (g *ExecutionGraph) Status(id string) NodeStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.status
	}
	return NodePending
}

// Size returns the number of nodes in the graph.
func (g *ExecutionGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
