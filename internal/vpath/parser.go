// internal/vpath/parser.go
package vpath

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentRegex matches a single path segment, e.g. `Utils.ush` or `my-lib`.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.+@ -]+$`)

func normalizeSeparators(raw string) string {
	return strings.ReplaceAll(raw, `\`, "/")
}

// Parse cleans and validates a raw include path. `.` segments are dropped and
// `..` segments pop their parent; a `..` that would climb above the root is an
// error.
func Parse(raw string) (*Path, error) {
	raw = strings.TrimSpace(normalizeSeparators(raw))
	if raw == "" {
		return nil, fmt.Errorf("include path cannot be empty")
	}

	p := &Path{Absolute: strings.HasPrefix(raw, "/")}
	for _, seg := range strings.Split(strings.Trim(raw, "/"), "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(p.Segments) == 0 {
				return nil, fmt.Errorf("include path %q escapes the search root", raw)
			}
			p.Segments = p.Segments[:len(p.Segments)-1]
			continue
		}
		if !segmentRegex.MatchString(seg) {
			return nil, fmt.Errorf("invalid include path segment %q in %q", seg, raw)
		}
		p.Segments = append(p.Segments, seg)
	}

	if len(p.Segments) == 0 {
		return nil, fmt.Errorf("include path %q names no file", raw)
	}
	return p, nil
}

// Validate checks the syntax of a raw include path without resolving `..`
// segments, which are only meaningful relative to the including file.
func Validate(raw string) error {
	raw = strings.TrimSpace(normalizeSeparators(raw))
	if strings.Trim(raw, "/") == "" {
		return fmt.Errorf("include path cannot be empty")
	}
	for _, seg := range strings.Split(strings.Trim(raw, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		if !segmentRegex.MatchString(seg) {
			return fmt.Errorf("invalid include path segment %q in %q", seg, raw)
		}
	}
	return nil
}
