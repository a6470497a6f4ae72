package hcl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/fragc/internal/config"
	"github.com/specialistvlad/fragc/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	environ func() []string
}

// NewLoader creates a loader that exposes the process environment as env.
func NewLoader() *Loader {
	return &Loader{environ: processEnviron}
}

// NewLoaderWithEnv creates a loader with a fixed environment, in
// os.Environ form.
func NewLoaderWithEnv(environ []string) *Loader {
	return &Loader{environ: func() []string { return environ }}
}

// Load parses and translates the project file at path.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path %s: %w", path, err)
	}
	projectDir := filepath.Dir(abs)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(abs)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root projectFile
	evalCtx := newEvalContext(projectDir, l.environ())
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	model := &config.Model{
		ProjectDir: projectDir,
		Settings:   l.translateSettings(projectDir, root.Settings),
	}
	for _, fb := range root.Fragments {
		frag, err := l.translateFragment(projectDir, fb)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", path, err)
		}
		model.Fragments = append(model.Fragments, frag)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project %s: %w", path, err)
	}

	logger.Debug("HCL loading complete.",
		"fragments", len(model.Fragments),
		"include_roots", len(model.Settings.IncludeSearchRoots),
	)
	return model, nil
}
