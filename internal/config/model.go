package config

import (
	"errors"
	"fmt"
)

// Model is the unified representation of a project file.
type Model struct {
	// ProjectDir is the absolute directory of the project file.
	ProjectDir string
	Settings   *Settings
	Fragments  []*Fragment
}

// Settings configures the compiler.
type Settings struct {
	IncludeSearchRoots      []string
	DuplicateIncludeIsError bool
	LineDirectives          bool
	ParseCacheSize          int
}

// Fragment is one fragment to compile.
type Fragment struct {
	ID string
	// SourcePath is the file the fragment text was read from, empty for
	// inline text.
	SourcePath string
	Text       string
	// OutputFile receives the generated source. Empty means the unit is
	// compiled but not written.
	OutputFile string
	// Uses lists fragments whose output this fragment consumes.
	Uses    []string
	Inputs  []*Slot
	Outputs []*Slot
}

// Slot binds a declared pin, by name, to a host variable.
type Slot struct {
	Name string
	Var  string
	Type string
}

// Fragment returns the fragment with the given id, or nil.
func (m *Model) Fragment(id string) *Fragment {
	for _, f := range m.Fragments {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Validate checks cross-references the loaders cannot see block by block.
func (m *Model) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(m.Fragments))
	for _, f := range m.Fragments {
		if _, dup := seen[f.ID]; dup {
			errs = append(errs, fmt.Errorf("fragment %q is defined more than once", f.ID))
		}
		seen[f.ID] = struct{}{}
	}
	for _, f := range m.Fragments {
		for _, dep := range f.Uses {
			if _, ok := seen[dep]; !ok {
				errs = append(errs, fmt.Errorf("fragment %q uses unknown fragment %q", f.ID, dep))
			}
		}
		if err := validateSlots(f.ID, "input", f.Inputs); err != nil {
			errs = append(errs, err)
		}
		if err := validateSlots(f.ID, "output", f.Outputs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateSlots(id, kind string, slots []*Slot) error {
	seen := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("fragment %q binds %s %q more than once", id, kind, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
