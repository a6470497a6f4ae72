// Package tracker keeps the reverse dependencies between fragments and
// include files and turns change notifications into invalidation sets.
//
// Invalidation is lazy: affected fragments are marked stale and their cached
// units evicted; nothing is recompiled until the host asks for it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/ctxlog"
	"github.com/specialistvlad/fragc/internal/dag"
	"github.com/specialistvlad/fragc/internal/include"
	"github.com/specialistvlad/fragc/internal/unitstore"
)

// Tracker serialises every dependency update behind one mutex.
type Tracker struct {
	mu    sync.Mutex
	graph *dag.Graph
	store unitstore.Store

	// files holds the include closure recorded for each fragment.
	files map[string][]string
	// composed holds host-declared fragment-to-fragment dependencies.
	composed map[string][]string
	stale    map[string]bool
}

// New creates a Tracker over graph that evicts from store.
func New(graph *dag.Graph, store unitstore.Store) *Tracker {
	return &Tracker{
		graph:    graph,
		store:    store,
		files:    make(map[string][]string),
		composed: make(map[string][]string),
		stale:    make(map[string]bool),
	}
}

// Record replaces the dependency edges of fragmentID with those of a fresh
// resolution and clears its stale flag. The fragment gets an edge to every
// file in its include closure; each file gets edges to its direct includes.
// File edges are written in emission order so each file's dependencies are
// current before anything points at it.
func (t *Tracker) Record(ctx context.Context, fragmentID string, res *include.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range res.Files {
		deps := make([]string, len(f.Includes))
		for i, inc := range f.Includes {
			deps[i] = dag.FileNode(inc)
		}
		if err := t.graph.SetDependencies(dag.FileNode(f.LogicalPath), deps); err != nil {
			return fmt.Errorf("failed to record includes of %q: %w", f.LogicalPath, err)
		}
	}

	t.files[fragmentID] = res.Closure()
	if err := t.setFragmentEdges(fragmentID); err != nil {
		return err
	}
	delete(t.stale, fragmentID)

	ctxlog.FromContext(ctx).Debug("Recorded dependencies.",
		"fragment", fragmentID, "closure", len(res.Files), "direct", len(res.Direct))
	return nil
}

// SetFragmentDependencies declares that fragmentID embeds the output of
// deps. Editing any of deps then invalidates fragmentID as well. A
// declaration that closes a cycle is rejected with CycleDetected.
func (t *Tracker) SetFragmentDependencies(ctx context.Context, fragmentID string, deps []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, had := t.composed[fragmentID]
	t.composed[fragmentID] = slices.Clone(deps)
	if err := t.setFragmentEdges(fragmentID); err != nil {
		if had {
			t.composed[fragmentID] = previous
		} else {
			delete(t.composed, fragmentID)
		}
		if errors.Is(err, dag.ErrCycle) {
			return compileerr.New(compileerr.CycleDetected, compileerr.Location{FragmentID: fragmentID, Offset: -1},
				"fragment composition cycle: %v", err)
		}
		return err
	}

	ctxlog.FromContext(ctx).Debug("Set fragment dependencies.", "fragment", fragmentID, "deps", deps)
	return nil
}

func (t *Tracker) setFragmentEdges(fragmentID string) error {
	var deps []string
	for _, f := range t.files[fragmentID] {
		deps = append(deps, dag.FileNode(f))
	}
	for _, id := range t.composed[fragmentID] {
		deps = append(deps, dag.FragmentNode(id))
	}
	if err := t.graph.SetDependencies(dag.FragmentNode(fragmentID), deps); err != nil {
		return fmt.Errorf("failed to record dependencies of fragment %q: %w", fragmentID, err)
	}
	return nil
}

// NotifyFileChanged invalidates every fragment that transitively includes
// any of the given logical paths and returns their ids, sorted.
func (t *Tracker) NotifyFileChanged(ctx context.Context, logicalPaths ...string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := make([]string, len(logicalPaths))
	for i, p := range logicalPaths {
		nodes[i] = dag.FileNode(p)
	}
	return t.invalidate(ctx, nodes, nil)
}

// NotifyFragmentEdited invalidates fragmentID and every fragment composed
// from it and returns their ids, sorted.
func (t *Tracker) NotifyFragmentEdited(ctx context.Context, fragmentID string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.invalidate(ctx, []string{dag.FragmentNode(fragmentID)}, []string{fragmentID})
}

// Forget drops a fragment entirely. Fragments composed from it are
// invalidated and returned.
func (t *Tracker) Forget(ctx context.Context, fragmentID string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := dag.FragmentNode(fragmentID)
	affected, err := t.invalidate(ctx, []string{node}, []string{fragmentID})
	if err != nil {
		return nil, err
	}
	if err := t.graph.RemoveNode(node); err != nil {
		return nil, err
	}
	delete(t.files, fragmentID)
	delete(t.composed, fragmentID)
	delete(t.stale, fragmentID)

	return slices.DeleteFunc(affected, func(id string) bool { return id == fragmentID }), nil
}

// invalidate marks the fragments among the transitive dependents of nodes
// (plus extra) stale and evicts their units. It is idempotent.
func (t *Tracker) invalidate(ctx context.Context, nodes []string, extra []string) ([]string, error) {
	dependents, err := t.graph.TransitiveDependents(nodes...)
	if err != nil {
		return nil, err
	}

	affected := slices.Clone(extra)
	for _, node := range dependents {
		if id, isFile, ok := dag.SplitNode(node); ok && !isFile {
			affected = append(affected, id)
		}
	}
	slices.Sort(affected)
	affected = slices.Compact(affected)

	for _, id := range affected {
		t.stale[id] = true
		if _, err := t.store.Evict(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to evict units of fragment %q: %w", id, err)
		}
	}

	if len(affected) > 0 {
		ctxlog.FromContext(ctx).Debug("Invalidated fragments.", "sources", nodes, "fragments", affected)
	}
	return affected, nil
}

// IsStale reports whether fragmentID was invalidated since it was last recorded.
func (t *Tracker) IsStale(fragmentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stale[fragmentID]
}

// Stale returns every stale fragment id, sorted.
func (t *Tracker) Stale() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.stale))
	for id := range t.stale {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClearStale clears the stale flag of fragmentID.
func (t *Tracker) ClearStale(fragmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stale, fragmentID)
}
