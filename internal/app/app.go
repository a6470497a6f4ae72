package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/specialistvlad/fragc/internal/compiler"
	"github.com/specialistvlad/fragc/internal/config"
	"github.com/specialistvlad/fragc/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	ctx      context.Context
	logger   *slog.Logger
	config   *Config
	project  *config.Model
	compiler *compiler.Compiler
	// sourcePaths maps fragment ids to the logical path of their source
	// file; fragments with inline text have none.
	sourcePaths map[string]string
	httpServer  *http.Server

	// mu guards fragment texts, which change in watch mode, and failed.
	mu     sync.Mutex
	failed map[string]struct{}
}

// NewApp is the constructor for the main application. It loads the
// project and builds the compiler; a failure to do either is a fatal
// startup error and panics.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	project, err := loader.Load(ctx, appConfig.ProjectPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Project loaded.", "fragments", len(project.Fragments))

	var opts []compiler.Option
	if appConfig.Backend != "" {
		backend, err := compiler.NewExecBackend(appConfig.Backend)
		if err != nil {
			panic(fmt.Errorf("invalid backend: %w", err))
		}
		opts = append(opts, compiler.WithBackend(backend))
		logger.Debug("Backend configured.", "command", backend.Command)
	}

	s := project.Settings
	roots := searchRoots(project)
	comp, err := compiler.New(compiler.Config{
		IncludeSearchRoots:      roots,
		DuplicateIncludeIsError: s.DuplicateIncludeIsError,
		LineDirectives:          s.LineDirectives,
		ParseCacheSize:          s.ParseCacheSize,
	}, opts...)
	if err != nil {
		panic(fmt.Errorf("failed to create compiler: %w", err))
	}

	for _, frag := range project.Fragments {
		if len(frag.Uses) == 0 {
			continue
		}
		if err := comp.SetFragmentDependencies(ctx, frag.ID, frag.Uses); err != nil {
			panic(fmt.Errorf("invalid fragment dependencies: %w", err))
		}
	}
	sourcePaths := make(map[string]string)
	for _, frag := range project.Fragments {
		if frag.SourcePath == "" {
			continue
		}
		logical, ok := comp.Files().LogicalPath(frag.SourcePath)
		if !ok {
			logger.Warn("Fragment source has no logical path; relative includes resolve against the search roots only.",
				"fragment", frag.ID, "path", frag.SourcePath)
			continue
		}
		sourcePaths[frag.ID] = logical
	}
	logger.Debug("Compiler ready.", "include_roots", roots)

	return &App{
		outW:        outW,
		ctx:         ctx,
		logger:      logger,
		config:      appConfig,
		project:     project,
		compiler:    comp,
		sourcePaths: sourcePaths,
		failed:      make(map[string]struct{}),
	}
}

// searchRoots returns the configured include roots followed by the
// directory of every fragment source file no configured root contains, so
// includes next to a fragment resolve relative to it.
func searchRoots(project *config.Model) []string {
	roots := slices.Clone(project.Settings.IncludeSearchRoots)
	for _, frag := range project.Fragments {
		if frag.SourcePath == "" {
			continue
		}
		dir := filepath.Dir(frag.SourcePath)
		if !slices.ContainsFunc(roots, func(root string) bool { return covers(root, dir) }) {
			roots = append(roots, dir)
		}
	}
	return roots
}

// covers reports whether dir is root or lies below it.
func covers(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Compiler returns the application's compiler. This is primarily for testing.
func (a *App) Compiler() *compiler.Compiler {
	return a.compiler
}

// Project returns the loaded project model.
func (a *App) Project() *config.Model {
	return a.project
}
