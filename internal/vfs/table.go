package vfs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/vpath"
)

// IncludeFile is a resolved include file.
type IncludeFile struct {
	LogicalPath  string
	PhysicalPath string
	// Root is the search root the file was found under.
	Root    string
	Text    string
	Hash    string
	ModTime time.Time
	Size    int64
}

// Table is a concurrency-safe cache of resolved include files.
type Table struct {
	roots []string

	mu      sync.RWMutex
	entries map[string]*IncludeFile
}

// New creates a table over the given search roots, in priority order.
func New(roots []string) (*Table, error) {
	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		r, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve search root %q: %w", root, err)
		}
		abs = append(abs, filepath.Clean(r))
	}
	return &Table{
		roots:   abs,
		entries: make(map[string]*IncludeFile),
	}, nil
}

// Roots returns the absolute search roots in priority order.
func (t *Table) Roots() []string {
	return slices.Clone(t.roots)
}

// Resolve returns the file for a logical path, reading it on first use.
// A path no root provides yields a compileerr.UnresolvedInclude error.
func (t *Table) Resolve(logicalPath string) (*IncludeFile, error) {
	key, err := canonical(logicalPath)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return entry, nil
	}

	physical, root, err := t.locate(key)
	if err != nil {
		return nil, err
	}
	if physical == "" {
		return nil, compileerr.New(compileerr.UnresolvedInclude, compileerr.Location{Origin: key},
			"include %q not found in search roots [%s]", key, strings.Join(t.roots, ", "))
	}

	entry, err = load(key, physical, root)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[key]; ok {
		// another resolve won the race
		return existing, nil
	}
	t.entries[key] = entry
	return entry, nil
}

// Lookup returns the cached entry for a logical path without touching disk.
func (t *Table) Lookup(logicalPath string) (*IncludeFile, bool) {
	key, err := canonical(logicalPath)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[key]
	return entry, ok
}

// Refresh re-checks a cached logical path against disk. It reports true
// when the content hash or the winning location changed, or when the file
// vanished; vanished files are evicted. Uncached paths report false.
func (t *Table) Refresh(logicalPath string) (bool, error) {
	key, err := canonical(logicalPath)
	if err != nil {
		return false, err
	}

	old, ok := t.Lookup(key)
	if !ok {
		return false, nil
	}

	physical, root, err := t.locate(key)
	if err != nil {
		return false, err
	}
	if physical == "" {
		t.Evict(key)
		return true, nil
	}

	if physical == old.PhysicalPath {
		info, err := os.Stat(physical)
		if err != nil {
			return false, fmt.Errorf("failed to stat %q: %w", physical, err)
		}
		if info.Size() == old.Size && info.ModTime().Equal(old.ModTime) {
			return false, nil
		}
	}

	entry, err := load(key, physical, root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.Evict(key)
			return true, nil
		}
		return false, err
	}

	t.mu.Lock()
	t.entries[key] = entry
	t.mu.Unlock()

	return entry.Hash != old.Hash || entry.PhysicalPath != old.PhysicalPath, nil
}

// LogicalPathsFor returns every logical path under which physicalPath could
// be reached, in root order. A file may be reachable through several roots,
// shadowed or not; callers refresh each candidate.
func (t *Table) LogicalPathsFor(physicalPath string) []string {
	abs, err := filepath.Abs(physicalPath)
	if err != nil {
		return nil
	}

	var paths []string
	for _, root := range t.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		logical := filepath.ToSlash(rel)
		if !slices.Contains(paths, logical) {
			paths = append(paths, logical)
		}
	}
	return paths
}

// LogicalPath maps a physical file to its logical path under the first
// root containing it. ok is false when no root contains the file or the
// relative path is not a valid logical path.
func (t *Table) LogicalPath(physicalPath string) (logical string, ok bool) {
	paths := t.LogicalPathsFor(physicalPath)
	if len(paths) == 0 {
		return "", false
	}
	key, err := canonical(paths[0])
	if err != nil {
		return "", false
	}
	return key, true
}

// Evict drops a cached entry.
func (t *Table) Evict(logicalPath string) {
	key, err := canonical(logicalPath)
	if err != nil {
		return
	}
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// Clear drops every cached entry.
func (t *Table) Clear() {
	t.mu.Lock()
	clear(t.entries)
	t.mu.Unlock()
}

// Len returns the number of cached entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// locate finds the first root containing key. An empty physical path means
// no root has it.
func (t *Table) locate(key string) (string, string, error) {
	rel := filepath.FromSlash(key)
	for _, root := range t.roots {
		candidate := filepath.Join(root, rel)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, root, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", "", fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
	}
	return "", "", nil
}

func load(key, physical, root string) (*IncludeFile, error) {
	f, err := os.Open(physical)
	if err != nil {
		return nil, fmt.Errorf("failed to open include %q: %w", physical, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat include %q: %w", physical, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read include %q: %w", physical, err)
	}

	sum := sha256.Sum256(data)
	return &IncludeFile{
		LogicalPath:  key,
		PhysicalPath: physical,
		Root:         root,
		Text:         string(data),
		Hash:         hex.EncodeToString(sum[:]),
		ModTime:      info.ModTime(),
		Size:         info.Size(),
	}, nil
}

func canonical(logicalPath string) (string, error) {
	p, err := vpath.Parse(logicalPath)
	if err != nil {
		return "", compileerr.New(compileerr.UnresolvedInclude, compileerr.Location{Origin: logicalPath},
			"invalid include path: %v", err)
	}
	return p.String(), nil
}
