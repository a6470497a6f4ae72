// Package dag stores the dependency graph between fragments and include
// files. Edges point from a dependent to its dependency; reverse lookups
// answer "who must be recompiled when this changes". Cycles are rejected
// when an edge is added, so the graph is acyclic at all times.
package dag
