// Package include flattens a fragment's include directives into an ordered,
// duplicate-free list of files.
package include

import (
	"slices"
	"strings"

	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/fragment"
	"github.com/specialistvlad/fragc/internal/vfs"
	"github.com/specialistvlad/fragc/internal/vpath"
)

// FileTable is the subset of the virtual file table the resolver needs.
type FileTable interface {
	Resolve(logicalPath string) (*vfs.IncludeFile, error)
}

// Options tunes resolution.
type Options struct {
	// DuplicateIncludeIsError turns a second occurrence of the same file into
	// a DuplicateSymbol error instead of silently skipping it.
	DuplicateIncludeIsError bool
}

// File is an include file ready for code generation.
type File struct {
	*vfs.IncludeFile

	// Body is the file text with its own include directives removed.
	Body      string
	BodyLines []int

	// Includes lists the files this file includes directly, in order.
	Includes []string

	// Chain is the include path that first reached this file, outermost first.
	Chain []string
}

// Result is the flattened include set of a fragment.
type Result struct {
	// Files is in emission order: every file follows the files it includes.
	Files []*File

	// Directives are the fragment's own directives with Resolved set.
	Directives []fragment.Directive

	// Direct lists the logical paths the fragment includes itself.
	Direct []string
}

// Closure returns every logical path the fragment depends on, in emission order.
func (r *Result) Closure() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.LogicalPath
	}
	return paths
}

// Resolver expands include directives against a FileTable.
type Resolver struct {
	files FileTable
	opts  Options
}

// NewResolver creates a new Resolver.
func NewResolver(files FileTable, opts Options) *Resolver {
	return &Resolver{files: files, opts: opts}
}

// Resolve expands the includes of frag depth-first, left to right. Each file
// is emitted once, at its first occurrence, after everything it includes.
func (r *Resolver) Resolve(frag *fragment.Fragment) (*Result, error) {
	w := &walk{
		resolver: r,
		frag:     frag,
		emitted:  make(map[string]*File),
		result:   &Result{},
	}

	dir := &vpath.Path{}
	if frag.SourcePath != "" {
		p, err := vpath.Parse(frag.SourcePath)
		if err != nil {
			return nil, compileerr.New(compileerr.ParseError, compileerr.Location{FragmentID: frag.ID},
				"invalid fragment source path %q: %v", frag.SourcePath, err)
		}
		dir = p.Dir()
		w.stack = append(w.stack, p.String())
	}

	for _, d := range frag.Includes {
		key, err := w.visit(dir, d, frag.ID)
		if err != nil {
			return nil, err
		}
		d.Resolved = true
		w.result.Directives = append(w.result.Directives, d)
		if !slices.Contains(w.result.Direct, key) {
			w.result.Direct = append(w.result.Direct, key)
		}
	}
	return w.result, nil
}

type walk struct {
	resolver *Resolver
	frag     *fragment.Fragment

	stack   []string
	emitted map[string]*File
	result  *Result
}

// visit resolves one directive found in includer (a logical path, or the
// fragment id) and returns the canonical logical path it names.
func (w *walk) visit(dir *vpath.Path, d fragment.Directive, includer string) (string, error) {
	key, file, err := w.lookup(dir, d, includer)
	if err != nil {
		return "", err
	}

	if i := slices.Index(w.stack, key); i >= 0 {
		cycle := append(slices.Clone(w.stack[i:]), key)
		return "", compileerr.New(compileerr.CycleDetected, w.location(includer, d),
			"include cycle: %s", strings.Join(cycle, " -> "))
	}

	if prev, ok := w.emitted[key]; ok {
		if w.resolver.opts.DuplicateIncludeIsError {
			return "", compileerr.New(compileerr.DuplicateSymbol, w.location(includer, d),
				"%q included more than once: first via %s, again via %s",
				key, chainString(prev.Chain), chainString(append(slices.Clone(w.stack), key)))
		}
		return key, nil
	}

	scan, err := fragment.ScanIncludes(key, file.Text)
	if err != nil {
		if ce, ok := compileerr.As(err); ok {
			ce = ce.WithFragment(w.frag.ID)
			ce.Location.IncludeChain = append(slices.Clone(w.stack), key)
			return "", ce
		}
		return "", err
	}

	out := &File{
		IncludeFile: file,
		Body:        scan.Body,
		BodyLines:   scan.BodyLines,
		Chain:       append(slices.Clone(w.stack), key),
	}

	w.stack = append(w.stack, key)
	keyPath, err := vpath.Parse(key)
	if err != nil {
		return "", err
	}
	for _, child := range scan.Includes {
		childKey, err := w.visit(keyPath.Dir(), child, key)
		if err != nil {
			return "", err
		}
		if !slices.Contains(out.Includes, childKey) {
			out.Includes = append(out.Includes, childKey)
		}
	}
	w.stack = w.stack[:len(w.stack)-1]

	w.emitted[key] = out
	w.result.Files = append(w.result.Files, out)
	return key, nil
}

// lookup tries the path relative to the including file's directory, then
// against the search roots. A leading slash skips the relative attempt. A
// candidate already on the stack is returned without a file so the caller
// reports the cycle even if the file is not in the table.
func (w *walk) lookup(dir *vpath.Path, d fragment.Directive, includer string) (string, *vfs.IncludeFile, error) {
	var candidates []string
	if !strings.HasPrefix(d.Path, "/") && !dir.IsRoot() {
		if p, err := vpath.Join(dir, d.Path); err == nil {
			candidates = append(candidates, p.String())
		}
	}
	if p, err := vpath.Parse(d.Path); err == nil && !slices.Contains(candidates, p.String()) {
		candidates = append(candidates, p.String())
	}

	for _, candidate := range candidates {
		if slices.Contains(w.stack, candidate) {
			return candidate, nil, nil
		}
		file, err := w.resolver.files.Resolve(candidate)
		if err == nil {
			return file.LogicalPath, file, nil
		}
		if !compileerr.IsKind(err, compileerr.UnresolvedInclude) {
			return "", nil, err
		}
	}

	return "", nil, compileerr.New(compileerr.UnresolvedInclude, w.location(includer, d),
		"cannot resolve include %q", d.Path)
}

func (w *walk) location(includer string, d fragment.Directive) compileerr.Location {
	return compileerr.Location{
		FragmentID:   w.frag.ID,
		Origin:       includer,
		Line:         d.Line,
		Column:       d.Column,
		Offset:       -1,
		IncludeChain: append(slices.Clone(w.stack), d.Path),
	}
}

func chainString(chain []string) string {
	return strings.Join(chain, " -> ")
}
