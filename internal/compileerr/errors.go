// Package compileerr defines the structured error values returned by the
// fragment compilation pipeline. Every failure that a user can fix by editing
// a fragment or an include file is reported as an *Error; infrastructure
// failures stay plain wrapped Go errors.
package compileerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes compilation errors.
type Kind uint8

const (
	// ParseError indicates malformed declaration or directive syntax.
	ParseError Kind = iota + 1

	// DuplicateSymbol indicates a name declared twice in one fragment, or an
	// include reached twice while duplicate includes are configured as errors.
	DuplicateSymbol

	// UnresolvedInclude indicates an include path that no search root provides.
	UnresolvedInclude

	// CycleDetected indicates a file that includes itself, directly or transitively.
	CycleDetected

	// TypeMismatch indicates host slots that do not match the fragment declarations.
	TypeMismatch

	// BackendCompileFailure carries the raw diagnostics of the external shader compiler.
	BackendCompileFailure
)

// String returns a human-readable error kind name.
func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case DuplicateSymbol:
		return "DuplicateSymbol"
	case UnresolvedInclude:
		return "UnresolvedInclude"
	case CycleDetected:
		return "CycleDetected"
	case TypeMismatch:
		return "TypeMismatch"
	case BackendCompileFailure:
		return "BackendCompileFailure"
	default:
		return "Unknown"
	}
}

// Location identifies where an error originated.
type Location struct {
	// FragmentID is the fragment whose compilation failed.
	FragmentID string

	// Origin names the file or fragment the line/column refer to, when it is
	// not the fragment itself (e.g. an include file).
	Origin string

	// Line and Column are 1-based; zero means unknown.
	Line   int
	Column int

	// Offset is the byte offset into the origin text, or -1 when unknown.
	Offset int

	// IncludeChain lists the include path that led to the error, outermost first.
	IncludeChain []string
}

func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.FragmentID)
	if l.Origin != "" && l.Origin != l.FragmentID {
		if sb.Len() > 0 {
			sb.WriteString(" in ")
		}
		sb.WriteString(l.Origin)
	}
	if l.Line > 0 {
		fmt.Fprintf(&sb, ":%d", l.Line)
		if l.Column > 0 {
			fmt.Fprintf(&sb, ":%d", l.Column)
		}
	}
	if len(l.IncludeChain) > 0 {
		fmt.Fprintf(&sb, " (via %s)", strings.Join(l.IncludeChain, " -> "))
	}
	return sb.String()
}

// Error is an immutable compilation error.
type Error struct {
	Kind     Kind
	Location Location
	Message  string

	// Diagnostics holds the backend's raw output for BackendCompileFailure.
	Diagnostics string
}

// New creates a new Error with a formatted message.
func New(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Location: loc,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	loc := e.Location.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, loc, e.Message)
}

// WithFragment returns a copy of e attributed to the given fragment.
func (e *Error) WithFragment(fragmentID string) *Error {
	cp := *e
	cp.Location.FragmentID = fragmentID
	cp.Location.IncludeChain = append([]string(nil), e.Location.IncludeChain...)
	return &cp
}

// FormatWithContext returns the error message with the offending source line
// and a caret under the column. source must be the text Location.Line refers to.
func (e *Error) FormatWithContext(source string) string {
	if source == "" || e.Location.Line == 0 {
		return e.Error()
	}

	lines := strings.Split(source, "\n")
	lineNum := e.Location.Line
	if lineNum > len(lines) {
		return e.Error()
	}

	line := strings.TrimRight(lines[lineNum-1], "\r")
	col := max(e.Location.Column, 1)
	col = min(col, len(line)+1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", e.Error())
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))
	return sb.String()
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}
