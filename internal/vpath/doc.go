// internal/vpath/doc.go

/*
Package vpath provides a structured representation for logical include
paths, the names fragments use in `#include` directives.

A logical path is a slash-separated sequence of segments, e.g.
`Shared/Lighting/Utils.ush`. A leading slash marks the path as absolute,
which means it is looked up only against the search roots and never
relative to the including file.

This package centralizes cleaning, validation and joining so that every
component agrees on a single canonical string for the same file.
*/
package vpath
