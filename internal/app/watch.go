package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/specialistvlad/fragc/internal/ctxlog"
	"github.com/specialistvlad/fragc/internal/watcher"
)

// NotifyFileChanged routes a file change to the compiler. Fragment source
// files are re-read and reported as fragment edits; everything else is
// treated as a potential include file.
func (a *App) NotifyFileChanged(ctx context.Context, path string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	var invalidated []string
	for _, frag := range a.project.Fragments {
		if frag.SourcePath == "" || frag.SourcePath != path {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Fragment source removed; keeping last text.", "fragment", frag.ID, "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read fragment source %s: %w", path, err)
		}

		a.mu.Lock()
		unchanged := frag.Text == string(data)
		frag.Text = string(data)
		a.mu.Unlock()
		if unchanged {
			continue
		}

		ids, err := a.compiler.NotifyFragmentEdited(ctx, frag.ID, string(data))
		if err != nil {
			return nil, err
		}
		invalidated = append(invalidated, ids...)
	}

	ids, err := a.compiler.NotifyFileChanged(ctx, path)
	if err != nil {
		return nil, err
	}
	invalidated = append(invalidated, ids...)

	slices.Sort(invalidated)
	return slices.Compact(invalidated), nil
}

// Watch rebuilds fragments as their sources and includes change until ctx
// is cancelled. Fragments whose last build failed are retried on every
// change, since a missing include never made it into the dependency graph.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	opts := []watcher.Option{watcher.OnInvalidate(a.rebuild)}
	if a.config.WatchDebounce > 0 {
		opts = append(opts, watcher.WithDebounce(a.config.WatchDebounce))
	}
	w, err := watcher.New(a, opts...)
	if err != nil {
		return err
	}

	for _, dir := range a.watchRoots() {
		if err := w.AddRoot(dir); err != nil {
			return err
		}
		a.logger.Debug("Watching directory tree.", "root", dir)
	}

	a.logger.Info("👀 Watching for changes...")
	return w.Run(ctx)
}

func (a *App) rebuild(ctx context.Context, path string, ids []string) {
	ids = append(ids, a.Failed()...)
	if len(ids) == 0 {
		return
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	a.logger.Info("Rebuilding after change.", "path", path, "fragments", ids)
	if err := a.Build(ctx, ids...); err != nil {
		a.logger.Debug("Rebuild left failures.", "error", err)
	}
}

// watchRoots returns the include search roots plus the directories of
// fragment source files, dropping any directory already covered by
// another root.
func (a *App) watchRoots() []string {
	var dirs []string
	dirs = append(dirs, a.project.Settings.IncludeSearchRoots...)
	for _, frag := range a.project.Fragments {
		if frag.SourcePath != "" {
			dirs = append(dirs, filepath.Dir(frag.SourcePath))
		}
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	var roots []string
	for _, dir := range dirs {
		if !slices.ContainsFunc(roots, func(root string) bool { return covers(root, dir) }) {
			roots = append(roots, dir)
		}
	}
	return roots
}
