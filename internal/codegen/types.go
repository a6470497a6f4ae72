package codegen

import (
	"github.com/specialistvlad/fragc/internal/fragment"
)

// Slot is the host graph's binding for one declared pin, matched by
// position.
type Slot struct {
	// Var is the host variable the pin reads from or writes to.
	Var string
	// Name, when set, must equal the declared symbol name.
	Name string
	// Type, when set, must name the same semantic type as the declaration.
	Type string
}

// Binding records how a declared symbol was bound in a generated unit.
type Binding struct {
	Symbol string
	// Type is the canonical semantic type.
	Type string
	// Slot is the host variable, or "" when an input fell back to its default.
	Slot    string
	Default string
}

// IncludeRef identifies an include file and the content it had at
// generation time.
type IncludeRef struct {
	LogicalPath string
	Hash        string
}

// Options tunes generation. Options are part of the cache key.
type Options struct {
	// LineDirectives emits #line markers so backend diagnostics point at
	// the original files.
	LineDirectives bool
}

// CompiledUnit is the generated source of one fragment.
type CompiledUnit struct {
	FragmentID string
	// Key is the content key the unit is cached under.
	Key    string
	Source string

	Inputs   []Binding
	Outputs  []Binding
	Includes []IncludeRef
	Defines  []fragment.Define

	SourceMap SourceMap
}
