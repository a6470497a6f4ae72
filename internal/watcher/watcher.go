// Package watcher forwards file-system changes under the include search
// roots to the compiler.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/fragc/internal/ctxlog"
	"github.com/specialistvlad/fragc/internal/fsutil"
)

// DefaultExtensions are the file extensions treated as shader sources.
var DefaultExtensions = []string{".ush", ".usf", ".hlsl", ".hlsli", ".glsl", ".h", ".frag", ".inc"}

// DefaultDebounce coalesces bursts of events for the same path, e.g. the
// truncate+write pair editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Notifier receives debounced file changes.
type Notifier interface {
	NotifyFileChanged(ctx context.Context, physicalPath string) ([]string, error)
}

// InvalidateFunc is called after every processed change with the
// fragments it invalidated, which may be none.
type InvalidateFunc func(ctx context.Context, path string, fragmentIDs []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the per-path debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithExtensions replaces DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) { w.exts = exts }
}

// OnInvalidate registers a callback run after each processed change.
func OnInvalidate(fn InvalidateFunc) Option {
	return func(w *Watcher) { w.onInvalidate = fn }
}

// Watcher watches directory trees and reports shader file changes.
type Watcher struct {
	fs           *fsnotify.Watcher
	notifier     Notifier
	delay        time.Duration
	exts         []string
	onInvalidate InvalidateFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher. Call AddRoot for each tree, then Run.
func New(notifier Notifier, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		notifier: notifier,
		delay:    DefaultDebounce,
		exts:     DefaultExtensions,
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddRoot watches root and every directory below it. A missing root is
// skipped so optional search roots do not prevent watching.
func (w *Watcher) AddRoot(root string) error {
	dirs, err := fsutil.FindDirs(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to walk %q: %w", root, err)
	}
	for _, dir := range dirs {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}
	return nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error.", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	logger := ctxlog.FromContext(ctx)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddRoot(event.Name); err != nil {
				logger.Warn("Failed to watch new directory.", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !fsutil.HasExtension(event.Name, w.exts...) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	logger.Debug("Shader file event.", "path", event.Name, "op", event.Op.String())
	w.debounce(ctx, event.Name)
}

func (w *Watcher) debounce(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.delay, func() {
		if !w.expire(path, timer) || ctx.Err() != nil {
			return
		}
		w.fire(ctx, path)
	})
	w.timers[path] = timer
}

// expire removes timer from the pending set and reports whether it was
// still the current timer for path. A timer that already started running
// when a newer event replaced it must neither fire nor drop its successor.
func (w *Watcher) expire(path string, timer *time.Timer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timers[path] != timer {
		return false
	}
	delete(w.timers, path)
	return true
}

func (w *Watcher) fire(ctx context.Context, path string) {
	logger := ctxlog.FromContext(ctx)

	ids, err := w.notifier.NotifyFileChanged(ctx, path)
	if err != nil {
		logger.Error("Failed to process file change.", "path", path, "error", err)
		return
	}
	if len(ids) > 0 {
		logger.Info("Fragments invalidated.", "path", path, "fragments", ids)
	}
	if w.onInvalidate != nil {
		w.onInvalidate(ctx, path, ids)
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.fs.Close()
}
