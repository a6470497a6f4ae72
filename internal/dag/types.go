package dag

import (
	"errors"
	"strings"
	"sync"

	"github.com/dominikbraun/graph"
)

// ErrCycle is returned when an edge would close a cycle.
var ErrCycle = errors.New("cycle detected")

// Graph is a directed acyclic graph keyed by stable string ids.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex serialises compound updates such as SetDependencies.
	mutex sync.RWMutex
	// g stores vertices and edges; it refuses edges that create cycles.
	g graph.Graph[string, string]
}

const (
	filePrefix     = "file:"
	fragmentPrefix = "fragment:"
)

// FileNode returns the node id of an include file.
func FileNode(logicalPath string) string {
	return filePrefix + logicalPath
}

// FragmentNode returns the node id of a fragment.
func FragmentNode(id string) string {
	return fragmentPrefix + id
}

// SplitNode reverses FileNode and FragmentNode. ok is false for ids created
// by neither.
func SplitNode(id string) (name string, isFile bool, ok bool) {
	if name, found := strings.CutPrefix(id, filePrefix); found {
		return name, true, true
	}
	if name, found := strings.CutPrefix(id, fragmentPrefix); found {
		return name, false, true
	}
	return "", false, false
}
