package dag

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		g: graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addNode(id)
}

func (g *Graph) addNode(id string) {
	// ErrVertexAlreadyExists is the only possible error and is fine here.
	_ = g.g.AddVertex(id)
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, err := g.g.Vertex(id)
	return err == nil
}

// AddEdge records that fromID depends on toID. An error is returned if
// either node does not exist, the edge is a self-reference, or the edge
// would create a cycle. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, err := g.g.Vertex(fromID); err != nil {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	if _, err := g.g.Vertex(toID); err != nil {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	return g.addEdge(fromID, toID)
}

func (g *Graph) addEdge(fromID, toID string) error {
	err := g.g.AddEdge(fromID, toID)
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("%w: edge %s -> %s", ErrCycle, fromID, toID)
	default:
		return fmt.Errorf("failed to add edge %s -> %s: %w", fromID, toID, err)
	}
}

// SetDependencies replaces every outgoing edge of id with edges to deps,
// creating missing nodes. The update is atomic: if any new edge would
// create a cycle the previous edges are restored and ErrCycle is returned.
func (g *Graph) SetDependencies(id string, deps []string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.addNode(id)
	old, err := g.dependencies(id)
	if err != nil {
		return err
	}

	for _, dep := range old {
		if err := g.g.RemoveEdge(id, dep); err != nil {
			return fmt.Errorf("failed to remove edge %s -> %s: %w", id, dep, err)
		}
	}

	var added []string
	for _, dep := range deps {
		if dep == id {
			g.rollback(id, added, old)
			return fmt.Errorf("%w: %s depends on itself", ErrCycle, id)
		}
		g.addNode(dep)
		if err := g.addEdge(id, dep); err != nil {
			g.rollback(id, added, old)
			return err
		}
		added = append(added, dep)
	}
	return nil
}

// rollback undoes a partial SetDependencies. The restored edges existed
// before, so re-adding them cannot create a cycle.
func (g *Graph) rollback(id string, added, old []string) {
	for _, dep := range added {
		_ = g.g.RemoveEdge(id, dep)
	}
	for _, dep := range old {
		_ = g.g.AddEdge(id, dep)
	}
}

// Dependencies returns the sorted IDs that the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.dependencies(id)
}

func (g *Graph) dependencies(id string) ([]string, error) {
	adjacency, err := g.g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency map: %w", err)
	}
	edges, ok := adjacency[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(edges), nil
}

// Dependents returns the sorted IDs of nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	predecessors, err := g.g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read predecessor map: %w", err)
	}
	edges, ok := predecessors[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(edges), nil
}

// TransitiveDependents returns every node that depends on any of ids,
// directly or indirectly, sorted. Unknown ids are ignored.
func (g *Graph) TransitiveDependents(ids ...string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	predecessors, err := g.g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read predecessor map: %w", err)
	}

	seen := make(map[string]bool)
	queue := slices.Clone(ids)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for dependent := range predecessors[id] {
			if !seen[dependent] {
				seen[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return sortedKeys(seen), nil
}

// RemoveNode deletes a node and every edge touching it. Removing an
// unknown node is a no-op.
func (g *Graph) RemoveNode(id string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, err := g.g.Vertex(id); err != nil {
		return nil
	}

	adjacency, err := g.g.AdjacencyMap()
	if err != nil {
		return fmt.Errorf("failed to read adjacency map: %w", err)
	}
	predecessors, err := g.g.PredecessorMap()
	if err != nil {
		return fmt.Errorf("failed to read predecessor map: %w", err)
	}
	for dep := range adjacency[id] {
		if err := g.g.RemoveEdge(id, dep); err != nil {
			return fmt.Errorf("failed to remove edge %s -> %s: %w", id, dep, err)
		}
	}
	for dependent := range predecessors[id] {
		if err := g.g.RemoveEdge(dependent, id); err != nil {
			return fmt.Errorf("failed to remove edge %s -> %s: %w", dependent, id, err)
		}
	}
	if err := g.g.RemoveVertex(id); err != nil {
		return fmt.Errorf("failed to remove node %s: %w", id, err)
	}
	return nil
}

// Nodes returns every node id, sorted.
func (g *Graph) Nodes() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	adjacency, err := g.g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency map: %w", err)
	}
	return sortedKeys(adjacency), nil
}

// DetectCycles checks the graph for any cycles. Edges that would close a
// cycle are refused on insertion, so this only fails if the underlying
// store was corrupted.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if _, err := graph.TopologicalSort(g.g); err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
