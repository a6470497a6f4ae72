package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/fragc/internal/codegen"
	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/compiler"
	"github.com/specialistvlad/fragc/internal/config"
	"github.com/specialistvlad/fragc/internal/ctxlog"
	"github.com/specialistvlad/fragc/internal/fragment"
)

// Build compiles the fragments with the given ids, or every fragment when
// ids is empty, using up to WorkerCount goroutines. Every fragment is
// attempted; the returned error joins all failures.
func (a *App) Build(ctx context.Context, ids ...string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	targets := a.project.Fragments
	if len(ids) > 0 {
		targets = make([]*config.Fragment, 0, len(ids))
		for _, id := range ids {
			if frag := a.project.Fragment(id); frag != nil {
				targets = append(targets, frag)
			}
		}
	}
	logger.Info("🚀 Building fragments...", "count", len(targets), "workers", a.config.WorkerCount)

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.WorkerCount)
	for _, frag := range targets {
		g.Go(func() error {
			if err := a.buildFragment(gctx, frag); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("fragment %q: %w", frag.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		logger.Error("Build finished with errors.", "failed", len(errs), "total", len(targets))
		return errors.Join(errs...)
	}
	logger.Info("🏁 Build finished.", "count", len(targets))
	return nil
}

func (a *App) buildFragment(ctx context.Context, frag *config.Fragment) error {
	logger := ctxlog.FromContext(ctx).With("fragment", frag.ID)

	a.mu.Lock()
	text := frag.Text
	a.mu.Unlock()

	req := compiler.Request{
		FragmentID: frag.ID,
		Source:     text,
		SourcePath: a.sourcePaths[frag.ID],
	}
	// A parse error is reported by Compile below.
	parsed, _ := a.compiler.Parse(req)
	inputs, outputs, err := bindSlots(frag, parsed)
	if err != nil {
		a.markFailed(frag.ID, true)
		logger.Error("Fragment failed.", "error", err)
		return err
	}
	req.Inputs, req.Outputs = inputs, outputs

	unit, err := a.compiler.Compile(ctx, req)
	if err != nil {
		a.markFailed(frag.ID, true)
		if cerr, ok := compileerr.As(err); ok {
			logger.Error("Fragment failed.", "kind", cerr.Kind.String(), "error", cerr.Error())
			if cerr.Location.FragmentID == frag.ID {
				logger.Debug("Failure context.", "source", cerr.FormatWithContext(text))
			}
		} else {
			logger.Error("Fragment failed.", "error", err)
		}
		return err
	}
	a.markFailed(frag.ID, false)

	if frag.OutputFile != "" {
		if err := writeUnit(frag.OutputFile, unit); err != nil {
			return err
		}
	}
	logger.Info("Fragment built.",
		"key", unit.Key[:12],
		"includes", len(unit.Includes),
		"output_file", frag.OutputFile,
	)
	return nil
}

func (a *App) markFailed(id string, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if failed {
		a.failed[id] = struct{}{}
	} else {
		delete(a.failed, id)
	}
}

// Failed returns the ids of fragments whose last build failed, sorted.
func (a *App) Failed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.failed))
	for id := range a.failed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func writeUnit(path string, unit *codegen.CompiledUnit) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(unit.Source), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// bindSlots orders the project's name-keyed slots by the fragment's
// declaration order. Pins the project leaves out stay unbound so inputs
// fall back to their defaults. A nil parsed means the text does not parse;
// slots are then passed through in project order.
func bindSlots(frag *config.Fragment, parsed *fragment.Fragment) (inputs, outputs []codegen.Slot, err error) {
	if parsed == nil {
		return toSlots(frag.Inputs), toSlots(frag.Outputs), nil
	}

	inNames := make([]string, len(parsed.Inputs))
	for i, in := range parsed.Inputs {
		inNames[i] = in.Name
	}
	outNames := make([]string, len(parsed.Outputs))
	for i, out := range parsed.Outputs {
		outNames[i] = out.Name
	}

	if inputs, err = orderSlots(frag.ID, "input", inNames, frag.Inputs); err != nil {
		return nil, nil, err
	}
	if outputs, err = orderSlots(frag.ID, "output", outNames, frag.Outputs); err != nil {
		return nil, nil, err
	}
	return inputs, outputs, nil
}

func orderSlots(id, kind string, declared []string, specs []*config.Slot) ([]codegen.Slot, error) {
	byName := make(map[string]*config.Slot, len(specs))
	for _, s := range specs {
		if !slices.Contains(declared, s.Name) {
			return nil, compileerr.New(compileerr.TypeMismatch, compileerr.Location{FragmentID: id},
				"project binds %s %q, which the fragment does not declare", kind, s.Name)
		}
		byName[s.Name] = s
	}

	slots := make([]codegen.Slot, len(declared))
	for i, name := range declared {
		if s, ok := byName[name]; ok {
			slots[i] = codegen.Slot{Var: s.Var, Name: s.Name, Type: s.Type}
		}
	}
	return slots, nil
}

func toSlots(specs []*config.Slot) []codegen.Slot {
	slots := make([]codegen.Slot, len(specs))
	for i, s := range specs {
		slots[i] = codegen.Slot{Var: s.Var, Name: s.Name, Type: s.Type}
	}
	return slots
}
