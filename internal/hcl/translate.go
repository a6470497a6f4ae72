package hcl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/fragc/internal/config"
	"github.com/specialistvlad/fragc/internal/fragment"
)

// translateSettings converts the settings block, filling defaults for an
// absent block or attribute.
func (l *Loader) translateSettings(projectDir string, s *settingsBlock) *config.Settings {
	settings := &config.Settings{LineDirectives: true}
	if s == nil {
		return settings
	}
	for _, root := range s.IncludeSearchRoots {
		settings.IncludeSearchRoots = append(settings.IncludeSearchRoots, resolvePath(projectDir, root))
	}
	if s.DuplicateIncludeIsError != nil {
		settings.DuplicateIncludeIsError = *s.DuplicateIncludeIsError
	}
	if s.LineDirectives != nil {
		settings.LineDirectives = *s.LineDirectives
	}
	if s.ParseCacheSize != nil {
		settings.ParseCacheSize = *s.ParseCacheSize
	}
	return settings
}

// translateFragment converts a fragment block, reading its source file
// when the text is not inline.
func (l *Loader) translateFragment(projectDir string, b *fragmentBlock) (*config.Fragment, error) {
	frag := &config.Fragment{ID: b.ID, Uses: b.Uses}

	switch {
	case b.Source != nil && b.Text != nil:
		return nil, fmt.Errorf("fragment %q: source and text are mutually exclusive", b.ID)
	case b.Source != nil:
		frag.SourcePath = resolvePath(projectDir, *b.Source)
		data, err := os.ReadFile(frag.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: failed to read source: %w", b.ID, err)
		}
		frag.Text = string(data)
	case b.Text != nil:
		frag.Text = *b.Text
	default:
		return nil, fmt.Errorf("fragment %q: one of source or text is required", b.ID)
	}

	if b.OutputFile != nil {
		frag.OutputFile = resolvePath(projectDir, *b.OutputFile)
	}

	var err error
	if frag.Inputs, err = translateSlots(b.ID, b.Inputs); err != nil {
		return nil, err
	}
	if frag.Outputs, err = translateSlots(b.ID, b.Outputs); err != nil {
		return nil, err
	}
	return frag, nil
}

func translateSlots(id string, blocks []*slotBlock) ([]*config.Slot, error) {
	var errs []error
	slots := make([]*config.Slot, 0, len(blocks))
	for _, b := range blocks {
		slot := &config.Slot{Name: b.Name}
		if b.Var != nil {
			slot.Var = *b.Var
		}
		if b.Type != nil {
			if _, ok := fragment.LookupType(*b.Type); !ok {
				errs = append(errs, fmt.Errorf("fragment %q: slot %q has unknown type %q", id, b.Name, *b.Type))
			}
			slot.Type = *b.Type
		}
		slots = append(slots, slot)
	}
	return slots, errors.Join(errs...)
}

func resolvePath(projectDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(projectDir, path)
}
