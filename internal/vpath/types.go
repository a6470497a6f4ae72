// internal/vpath/types.go
package vpath

// Path is the structured, cleaned representation of a logical include path.
type Path struct {
	Segments []string
	// Absolute is true when the raw directive started with a slash.
	Absolute bool
}

// Base returns the last segment, or "" for an empty path.
func (p *Path) Base() string {
	if p == nil || len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// Dir returns the parent directory of the path. The result of Dir on a
// single-segment path is the empty root path.
func (p *Path) Dir() *Path {
	if p == nil || len(p.Segments) <= 1 {
		return &Path{Absolute: p != nil && p.Absolute}
	}
	segs := make([]string, len(p.Segments)-1)
	copy(segs, p.Segments)
	return &Path{Segments: segs, Absolute: p.Absolute}
}

// IsRoot reports whether the path has no segments.
func (p *Path) IsRoot() bool {
	return p == nil || len(p.Segments) == 0
}
