package codegen

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/fragc/internal/compileerr"
)

// Origin is where one generated line came from.
type Origin struct {
	// Name is an include's logical path or the fragment id.
	Name      string
	Line      int
	IsInclude bool
}

// SourceMap maps generated lines back to their origin. Lines[i] describes
// generated line i+1; markers and bindings have a zero Origin.
type SourceMap struct {
	Lines []Origin
}

// Lookup returns the origin of a 1-based generated line.
func (m SourceMap) Lookup(line int) (Origin, bool) {
	if line < 1 || line > len(m.Lines) {
		return Origin{}, false
	}
	o := m.Lines[line-1]
	return o, o.Name != ""
}

var (
	// e.g. `tint.usf(12,5): error X3004: undeclared identifier`
	parenDiagRegex = regexp.MustCompile(`^\s*(.*?)\((\d+)(?:,\s*(\d+))?(?:-\d+)?\)\s*:\s*(.*)$`)
	// e.g. `ERROR: tint.glsl:12: 'x' : undeclared identifier`
	colonDiagRegex = regexp.MustCompile(`^(?:\w+:\s*)?(.*?):(\d+):(?:(\d+):)?\s*(.*)$`)
)

// BackendError turns raw backend diagnostics into a BackendCompileFailure
// located at the first diagnostic that can be traced to a fragment or an
// include file.
func (u *CompiledUnit) BackendError(diagnostics string) *compileerr.Error {
	loc := compileerr.Location{FragmentID: u.FragmentID, Offset: -1}
	message := "backend compilation failed"

	for _, raw := range strings.Split(diagnostics, "\n") {
		path, line, col, msg, ok := splitDiagnostic(raw)
		if !ok {
			continue
		}
		origin, found := u.origin(path, line)
		if !found {
			continue
		}
		loc.Line = origin.Line
		loc.Column = col
		if origin.IsInclude {
			loc.Origin = origin.Name
		}
		message = msg
		break
	}

	err := compileerr.New(compileerr.BackendCompileFailure, loc, "%s", message)
	err.Diagnostics = diagnostics
	return err
}

// origin resolves a diagnostic position. Positions reported against a
// #line name are already original coordinates; anything else is a
// generated line.
func (u *CompiledUnit) origin(path string, line int) (Origin, bool) {
	path = strings.Trim(strings.TrimSpace(path), `"`)
	if path == u.FragmentID {
		return Origin{Name: path, Line: line}, true
	}
	if slices.ContainsFunc(u.Includes, func(ref IncludeRef) bool { return ref.LogicalPath == path }) {
		return Origin{Name: path, Line: line, IsInclude: true}, true
	}
	return u.SourceMap.Lookup(line)
}

func splitDiagnostic(raw string) (path string, line, col int, msg string, ok bool) {
	m := parenDiagRegex.FindStringSubmatch(raw)
	if m == nil {
		m = colonDiagRegex.FindStringSubmatch(raw)
	}
	if m == nil {
		return "", 0, 0, "", false
	}
	line, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, "", false
	}
	if m[3] != "" {
		col, _ = strconv.Atoi(m[3])
	}
	return m[1], line, col, strings.TrimSpace(m[4]), true
}
