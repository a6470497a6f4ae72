package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/specialistvlad/fragc/internal/codegen"
	"github.com/specialistvlad/fragc/internal/ctxlog"
	"github.com/specialistvlad/fragc/internal/dag"
	"github.com/specialistvlad/fragc/internal/fragment"
	"github.com/specialistvlad/fragc/internal/include"
	"github.com/specialistvlad/fragc/internal/inmemorystore"
	"github.com/specialistvlad/fragc/internal/tracker"
	"github.com/specialistvlad/fragc/internal/unitstore"
	"github.com/specialistvlad/fragc/internal/vfs"
)

// DefaultParseCacheSize bounds the parse memo when Config leaves it zero.
const DefaultParseCacheSize = 512

// Config holds the compiler settings.
type Config struct {
	// IncludeSearchRoots are searched in order; the first match wins.
	IncludeSearchRoots []string
	// DuplicateIncludeIsError rejects a file included twice instead of
	// inlining it once.
	DuplicateIncludeIsError bool
	// LineDirectives emits #line markers into generated units.
	LineDirectives bool
	// ParseCacheSize bounds the number of memoised parses.
	ParseCacheSize int
}

// Request is one compile call from the host.
type Request struct {
	FragmentID string
	Source     string
	// SourcePath is the logical path the fragment was loaded from, if any.
	SourcePath string
	Inputs     []codegen.Slot
	Outputs    []codegen.Slot
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Units  int

	// Parses is the number of memoised parse results; ParseRuns counts
	// how often the parser actually ran.
	Parses    int
	ParseRuns int64
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithStore replaces the default in-memory unit store.
func WithStore(store unitstore.Store) Option {
	return func(c *Compiler) { c.store = store }
}

// WithBackend hands every freshly generated unit to backend before it is
// cached. Units the backend rejects are not cached.
func WithBackend(backend Backend) Option {
	return func(c *Compiler) { c.backend = backend }
}

// Compiler compiles fragments and tracks their dependencies.
type Compiler struct {
	files    *vfs.Table
	resolver *include.Resolver
	tracker  *tracker.Tracker
	store    unitstore.Store
	backend  Backend
	opts     codegen.Options

	parses *lru.Cache[string, parseResult]
	group  singleflight.Group

	// sourcePaths remembers each fragment's last SourcePath so edits are
	// pre-parsed under the memo key the next Compile uses.
	sourcePaths sync.Map

	hits      atomic.Int64
	misses    atomic.Int64
	parseRuns atomic.Int64
}

type parseResult struct {
	frag *fragment.Fragment
	err  error
}

// New creates a Compiler.
func New(cfg Config, opts ...Option) (*Compiler, error) {
	files, err := vfs.New(cfg.IncludeSearchRoots)
	if err != nil {
		return nil, err
	}

	size := cfg.ParseCacheSize
	if size <= 0 {
		size = DefaultParseCacheSize
	}
	parses, err := lru.New[string, parseResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}

	c := &Compiler{
		files:    files,
		resolver: include.NewResolver(files, include.Options{DuplicateIncludeIsError: cfg.DuplicateIncludeIsError}),
		store:    inmemorystore.New(),
		opts:     codegen.Options{LineDirectives: cfg.LineDirectives},
		parses:   parses,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracker = tracker.New(dag.New(), c.store)
	return c, nil
}

// Files returns the compiler's virtual file table.
func (c *Compiler) Files() *vfs.Table {
	return c.files
}

// Compile parses, resolves and generates one fragment, returning a cached
// unit when nothing it depends on has changed. Failures are returned as
// *compileerr.Error values; no unit is returned alongside an error.
func (c *Compiler) Compile(ctx context.Context, req Request) (*codegen.CompiledUnit, error) {
	logger := ctxlog.FromContext(ctx).With("fragment", req.FragmentID)

	c.sourcePaths.Store(req.FragmentID, req.SourcePath)
	frag, err := c.parse(req)
	if err != nil {
		logger.Debug("Parse failed.", "error", err)
		return nil, err
	}

	res, err := c.resolver.Resolve(frag)
	if err != nil {
		logger.Debug("Include resolution failed.", "error", err)
		return nil, err
	}
	if err := c.tracker.Record(ctx, req.FragmentID, res); err != nil {
		return nil, err
	}

	key := codegen.Key(req.FragmentID, req.Source, res.Files, req.Inputs, req.Outputs, c.opts)

	// singleflight ensures only one goroutine generates per key
	result, err, _ := c.group.Do(key, func() (any, error) {
		unit, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read unit cache: %w", err)
		}
		if ok {
			c.hits.Add(1)
			logger.Debug("Cache hit.", "key", key[:12])
			return unit, nil
		}
		c.misses.Add(1)

		unit, err = codegen.Generate(frag, res.Files, req.Inputs, req.Outputs, c.opts)
		if err != nil {
			return nil, err
		}
		unit.Key = key

		if c.backend != nil {
			if err := c.runBackend(ctx, unit); err != nil {
				return nil, err
			}
		}

		if err := c.store.Put(ctx, key, unit); err != nil {
			return nil, fmt.Errorf("failed to write unit cache: %w", err)
		}
		logger.Debug("Generated unit.", "key", key[:12], "includes", len(res.Files), "bytes", len(unit.Source))
		return unit, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*codegen.CompiledUnit), nil
}

// Parse returns the parsed fragment for req's id, text and source path,
// sharing the memo Compile uses. Slots are ignored. The result must not be
// modified.
func (c *Compiler) Parse(req Request) (*fragment.Fragment, error) {
	return c.parse(req)
}

// parse memoises fragment.Parse. Parsing is pure, so a memo entry can be
// dropped at any time.
func (c *Compiler) parse(req Request) (*fragment.Fragment, error) {
	sum := sha256.New()
	for _, s := range []string{req.FragmentID, req.SourcePath, req.Source} {
		fmt.Fprintf(sum, "%d:%s;", len(s), s)
	}
	memoKey := hex.EncodeToString(sum.Sum(nil))

	if cached, ok := c.parses.Get(memoKey); ok {
		return cached.frag, cached.err
	}

	c.parseRuns.Add(1)
	frag, err := fragment.Parse(req.FragmentID, req.Source)
	if frag != nil {
		frag.SourcePath = req.SourcePath
	}
	c.parses.Add(memoKey, parseResult{frag: frag, err: err})
	return frag, err
}

// NotifyFileChanged refreshes every logical path physicalPath can be
// reached under and invalidates the fragments depending on the ones whose
// content or location changed. It returns the invalidated fragment ids.
func (c *Compiler) NotifyFileChanged(ctx context.Context, physicalPath string) ([]string, error) {
	var changed []string
	for _, logical := range c.files.LogicalPathsFor(physicalPath) {
		ok, err := c.files.Refresh(logical)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh %q: %w", logical, err)
		}
		if ok {
			changed = append(changed, logical)
		}
	}
	if len(changed) == 0 {
		ctxlog.FromContext(ctx).Debug("File change did not affect any include.", "path", physicalPath)
		return nil, nil
	}
	return c.tracker.NotifyFileChanged(ctx, changed...)
}

// NotifyFragmentEdited invalidates a fragment and every fragment composed
// from it. The new text is parsed eagerly, under the source path of the
// fragment's last Compile, so the next Compile finds it in the memo; parse
// errors surface from Compile.
func (c *Compiler) NotifyFragmentEdited(ctx context.Context, fragmentID, newText string) ([]string, error) {
	sourcePath, _ := c.sourcePaths.Load(fragmentID)
	path, _ := sourcePath.(string)
	if _, err := c.parse(Request{FragmentID: fragmentID, Source: newText, SourcePath: path}); err != nil {
		ctxlog.FromContext(ctx).Debug("Edited fragment does not parse.", "fragment", fragmentID, "error", err)
	}
	return c.tracker.NotifyFragmentEdited(ctx, fragmentID)
}

// SetFragmentDependencies declares that fragmentID embeds the generated
// output of deps.
func (c *Compiler) SetFragmentDependencies(ctx context.Context, fragmentID string, deps []string) error {
	return c.tracker.SetFragmentDependencies(ctx, fragmentID, deps)
}

// RemoveFragment forgets a fragment whose graph node was deleted and
// returns the fragments that were composed from it.
func (c *Compiler) RemoveFragment(ctx context.Context, fragmentID string) ([]string, error) {
	c.sourcePaths.Delete(fragmentID)
	return c.tracker.Forget(ctx, fragmentID)
}

// IsStale reports whether fragmentID was invalidated since its last compile.
func (c *Compiler) IsStale(fragmentID string) bool {
	return c.tracker.IsStale(fragmentID)
}

// Stats returns cache counters.
func (c *Compiler) Stats(ctx context.Context) (Stats, error) {
	units, err := c.store.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Units:     units,
		Parses:    c.parses.Len(),
		ParseRuns: c.parseRuns.Load(),
	}, nil
}
