package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.True(t, g.HasNode("a"))

	g.AddNode("a") // Test idempotency
	nodes, err := g.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, nodes)

	g.AddNode("b")
	nodes, err = g.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, nodes)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		require.NoError(t, g.AddEdge("a", "b")) // a depends on b
		require.NoError(t, g.AddEdge("a", "b")) // existing edge is a no-op

		deps, err := g.Dependencies("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, deps)

		dependents, err := g.Dependents("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})

	t.Run("cycle is refused", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))

		err := g.AddEdge("c", "a")
		assert.ErrorIs(t, err, ErrCycle)
		assert.NoError(t, g.DetectCycles())
	})
}

func TestSetDependencies(t *testing.T) {
	t.Run("replaces edges", func(t *testing.T) {
		g := New()
		require.NoError(t, g.SetDependencies("f", []string{"x", "y"}))
		require.NoError(t, g.SetDependencies("f", []string{"y", "z"}))

		deps, err := g.Dependencies("f")
		require.NoError(t, err)
		assert.Equal(t, []string{"y", "z"}, deps)

		dependents, err := g.Dependents("x")
		require.NoError(t, err)
		assert.Empty(t, dependents)
	})

	t.Run("stale edges cannot cause false cycles", func(t *testing.T) {
		g := New()
		require.NoError(t, g.SetDependencies("a", []string{"b"}))
		// b no longer depends on anything that reaches a, then a drops b.
		require.NoError(t, g.SetDependencies("a", nil))
		require.NoError(t, g.SetDependencies("b", []string{"a"}))
	})

	t.Run("cycle rolls back", func(t *testing.T) {
		g := New()
		require.NoError(t, g.SetDependencies("a", []string{"b"}))
		require.NoError(t, g.SetDependencies("b", []string{"c"}))

		err := g.SetDependencies("c", []string{"d", "a"})
		assert.ErrorIs(t, err, ErrCycle)

		deps, err := g.Dependencies("c")
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("rollback restores previous edges", func(t *testing.T) {
		g := New()
		require.NoError(t, g.SetDependencies("a", []string{"b"}))
		require.NoError(t, g.SetDependencies("c", []string{"d"}))

		err := g.SetDependencies("b", []string{"e", "a"})
		assert.ErrorIs(t, err, ErrCycle)

		require.NoError(t, g.SetDependencies("b", []string{"e"}))
		err = g.SetDependencies("b", []string{"c", "b"})
		assert.ErrorIs(t, err, ErrCycle)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, deps)
	})
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	require.NoError(t, g.SetDependencies(FragmentNode("f1"), []string{FileNode("A.ush")}))
	require.NoError(t, g.SetDependencies(FileNode("A.ush"), []string{FileNode("Common.ush")}))
	require.NoError(t, g.SetDependencies(FragmentNode("f2"), []string{FileNode("Common.ush")}))
	require.NoError(t, g.SetDependencies(FragmentNode("f3"), []string{FragmentNode("f1")}))
	require.NoError(t, g.SetDependencies(FragmentNode("other"), []string{FileNode("B.ush")}))

	got, err := g.TransitiveDependents(FileNode("Common.ush"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		FileNode("A.ush"),
		FragmentNode("f1"),
		FragmentNode("f2"),
		FragmentNode("f3"),
	}, got)

	got, err = g.TransitiveDependents("unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemoveNode(t *testing.T) {
	g := New()
	require.NoError(t, g.SetDependencies("a", []string{"b"}))
	require.NoError(t, g.SetDependencies("b", []string{"c"}))

	require.NoError(t, g.RemoveNode("b"))
	assert.False(t, g.HasNode("b"))

	deps, err := g.Dependencies("a")
	require.NoError(t, err)
	assert.Empty(t, deps)

	require.NoError(t, g.RemoveNode("b"), "removing twice is a no-op")
}

func TestSplitNode(t *testing.T) {
	name, isFile, ok := SplitNode(FileNode("Lib/A.ush"))
	assert.True(t, ok)
	assert.True(t, isFile)
	assert.Equal(t, "Lib/A.ush", name)

	name, isFile, ok = SplitNode(FragmentNode("tint"))
	assert.True(t, ok)
	assert.False(t, isFile)
	assert.Equal(t, "tint", name)

	_, _, ok = SplitNode("bogus")
	assert.False(t, ok)
}
