package fragment

import (
	"regexp"
	"strings"

	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/vpath"
)

const includeKeyword = "#include"

var (
	identRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	defineRegex = regexp.MustCompile(`^\s*#define\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+(.*?))?\s*$`)
)

// Parse extracts declarations, include directives and defines from text.
// It never touches the file system.
func Parse(id, text string) (*Fragment, error) {
	s := &scanner{
		fragmentID: id,
		origin:     id,
		allowDecls: true,
		declaredAt: map[string]int{},
		declaredAs: map[string]string{},
	}
	if err := s.run(text); err != nil {
		return nil, err
	}
	return &Fragment{
		ID:        id,
		Source:    text,
		Inputs:    s.inputs,
		Outputs:   s.outputs,
		Includes:  s.includes,
		Defines:   s.defines,
		Body:      strings.Join(s.body, "\n"),
		BodyLines: s.bodyLines,
	}, nil
}

// IncludeScan is the result of scanning an include file.
type IncludeScan struct {
	Includes []Directive
	// Body is the text with include directive lines removed.
	Body      string
	BodyLines []int
}

// ScanIncludes extracts the include directives of an include file. origin
// names the file in error locations. input/output lines carry no meaning in
// include files and are kept as body text.
func ScanIncludes(origin, text string) (*IncludeScan, error) {
	s := &scanner{origin: origin}
	if err := s.run(text); err != nil {
		return nil, err
	}
	return &IncludeScan{
		Includes:  s.includes,
		Body:      strings.Join(s.body, "\n"),
		BodyLines: s.bodyLines,
	}, nil
}

// scanner walks the source line by line. Offsets refer to the text with
// CRLF line endings folded to LF.
type scanner struct {
	fragmentID string
	origin     string
	allowDecls bool

	inputs   []Input
	outputs  []Output
	includes []Directive
	defines  []Define

	body      []string
	bodyLines []int

	// declaredAt and declaredAs track every pin name for duplicate checks.
	declaredAt map[string]int
	declaredAs map[string]string

	inBlockComment bool

	// position of the line being scanned
	line       string
	lineNo     int
	lineOffset int
}

func (s *scanner) run(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	offset := 0
	for i, line := range lines {
		s.line, s.lineNo, s.lineOffset = line, i+1, offset
		if err := s.scanLine(); err != nil {
			return err
		}
		offset += len(line) + 1
	}
	return nil
}

func (s *scanner) scanLine() error {
	if s.inBlockComment {
		s.addBody(s.line)
		return nil
	}

	pos := skipSpace(s.line, 0)
	consumed, afterInclude := false, false
	for pos < len(s.line) {
		rest := s.line[pos:]
		var err error
		switch {
		case s.allowDecls && hasKeyword(rest, "input"):
			pos, err = s.declaration(pos, true)
			afterInclude = false
		case s.allowDecls && hasKeyword(rest, "output"):
			pos, err = s.declaration(pos, false)
			afterInclude = false
		case hasKeyword(rest, includeKeyword):
			pos, err = s.include(pos)
			afterInclude = true
		case consumed && strings.HasPrefix(rest, "//"):
			return nil
		case afterInclude:
			return s.errorAt(compileerr.ParseError, pos, "unexpected text after include directive: %q", rest)
		case consumed:
			s.addBody(rest)
			return nil
		default:
			s.addBody(s.line)
			return nil
		}
		if err != nil {
			return err
		}
		consumed = true
		pos = skipSpace(s.line, pos)
	}
	if !consumed {
		// blank or whitespace-only line
		s.addBody(s.line)
	}
	return nil
}

func (s *scanner) declaration(pos int, isInput bool) (int, error) {
	keyword := "output"
	if isInput {
		keyword = "input"
	}

	p := skipSpace(s.line, pos+len(keyword))
	typePos := p
	typ, p := readWord(s.line, p)
	if typ == "" {
		return 0, s.errorAt(compileerr.ParseError, typePos, "expected a type after %q", keyword)
	}
	info, ok := LookupType(typ)
	if !ok {
		return 0, s.errorAt(compileerr.ParseError, typePos, "unknown type %q", typ)
	}
	if !isInput && !info.IsValue() {
		return 0, s.errorAt(compileerr.ParseError, typePos, "invalid type for an output: %s", typ)
	}

	p = skipSpace(s.line, p)
	namePos := p
	name, p := readWord(s.line, p)
	if name == "" {
		return 0, s.errorAt(compileerr.ParseError, namePos, "expected a name after type %q", typ)
	}
	if !identRegex.MatchString(name) {
		return 0, s.errorAt(compileerr.ParseError, namePos, "invalid identifier %q", name)
	}

	p = skipSpace(s.line, p)
	var def string
	if p < len(s.line) && s.line[p] == '=' {
		if !isInput {
			return 0, s.errorAt(compileerr.ParseError, p, "output %q cannot have a default value", name)
		}
		exprStart := p + 1
		exprEnd := len(s.line)
		if i := strings.IndexByte(s.line[exprStart:], ';'); i >= 0 {
			exprEnd = exprStart + i
		}
		if i := strings.Index(s.line[exprStart:exprEnd], "//"); i >= 0 {
			exprEnd = exprStart + i
		}
		def = strings.TrimSpace(s.line[exprStart:exprEnd])
		if def == "" {
			return 0, s.errorAt(compileerr.ParseError, p, "expected a default value for %q after '='", name)
		}
		if err := ValidateDefault(info, def); err != nil {
			return 0, s.errorAt(compileerr.ParseError, skipSpace(s.line, exprStart), "%s: %v", name, err)
		}
		p = exprEnd
	}

	if p < len(s.line) {
		switch {
		case s.line[p] == ';':
			p++
		case strings.HasPrefix(s.line[p:], "//"):
		default:
			return 0, s.errorAt(compileerr.ParseError, p, "expected ';' after declaration of %q", name)
		}
	}

	if prevLine, dup := s.declaredAt[name]; dup {
		return 0, s.errorAt(compileerr.DuplicateSymbol, namePos,
			"%s %q already declared as %s on line %d", keyword, name, s.declaredAs[name], prevLine)
	}
	s.declaredAt[name] = s.lineNo
	s.declaredAs[name] = keyword

	if isInput {
		s.inputs = append(s.inputs, Input{Name: name, Type: typ, Default: def, Line: s.lineNo})
	} else {
		s.outputs = append(s.outputs, Output{Name: name, Type: typ, Line: s.lineNo})
	}
	return p, nil
}

func (s *scanner) include(pos int) (int, error) {
	p := skipSpace(s.line, pos+len(includeKeyword))
	if p >= len(s.line) {
		return 0, s.errorAt(compileerr.ParseError, pos, "expected a quoted path after %s", includeKeyword)
	}

	var closing byte
	switch s.line[p] {
	case '"':
		closing = '"'
	case '<':
		closing = '>'
	default:
		return 0, s.errorAt(compileerr.ParseError, p, "include path must be quoted, got %q", s.line[p:])
	}

	end := strings.IndexByte(s.line[p+1:], closing)
	if end < 0 {
		return 0, s.errorAt(compileerr.ParseError, p, "unterminated include path")
	}
	raw := s.line[p+1 : p+1+end]
	if err := vpath.Validate(raw); err != nil {
		return 0, s.errorAt(compileerr.ParseError, p+1, "invalid include path: %v", err)
	}

	s.includes = append(s.includes, Directive{
		Path:   raw,
		Line:   s.lineNo,
		Column: pos + 1,
		Angled: closing == '>',
	})
	return p + 1 + end + 1, nil
}

func (s *scanner) addBody(text string) {
	if !s.inBlockComment {
		if m := defineRegex.FindStringSubmatch(text); m != nil {
			s.defines = append(s.defines, Define{Name: m[1], Value: m[2], Line: s.lineNo})
		}
	}
	s.body = append(s.body, text)
	s.bodyLines = append(s.bodyLines, s.lineNo)
	s.inBlockComment = blockCommentOpen(text, s.inBlockComment)
}

func (s *scanner) errorAt(kind compileerr.Kind, col int, format string, args ...any) error {
	return compileerr.New(kind, compileerr.Location{
		FragmentID: s.fragmentID,
		Origin:     s.origin,
		Line:       s.lineNo,
		Column:     col + 1,
		Offset:     s.lineOffset + col,
	}, format, args...)
}

// blockCommentOpen reports whether a /* comment is still open at the end of
// line, given whether one was open at its start.
func blockCommentOpen(line string, open bool) bool {
	for i := 0; i+1 < len(line); i++ {
		pair := line[i : i+2]
		switch {
		case open && pair == "*/":
			open = false
			i++
		case !open && pair == "//":
			return false
		case !open && pair == "/*":
			open = true
			i++
		}
	}
	return open
}

// hasKeyword reports whether s starts with kw followed by a non-identifier
// character or the end of s.
func hasKeyword(s, kw string) bool {
	if !strings.HasPrefix(s, kw) {
		return false
	}
	return len(s) == len(kw) || !isIdentChar(s[len(kw)])
}

func readWord(s string, pos int) (string, int) {
	end := pos
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	return s[pos:end], end
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
