// internal/vpath/path.go
package vpath

import (
	"slices"
	"strings"
)

// String serializes the Path into its canonical form. The canonical form
// never carries the leading slash: absolute and relative spellings of the
// same file resolve to the same identity.
func (p *Path) String() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.Segments, "/")
}

// Equal checks whether two paths name the same logical file.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return slices.Equal(p.Segments, other.Segments)
}

// Join resolves rel against the directory dir. If rel is absolute, dir is
// ignored.
func Join(dir *Path, rel string) (*Path, error) {
	rel = strings.TrimSpace(normalizeSeparators(rel))
	if strings.HasPrefix(rel, "/") || dir.IsRoot() {
		return Parse(rel)
	}
	return Parse(dir.String() + "/" + rel)
}
