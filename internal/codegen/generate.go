package codegen

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/fragment"
	"github.com/specialistvlad/fragc/internal/include"
)

// Generate produces the compiled unit for frag. includes must be in
// resolution order. inputs and outputs bind the declared pins by position.
// The returned unit has no Key; callers compute it with Key.
func Generate(frag *fragment.Fragment, includes []*include.File, inputs, outputs []Slot, opts Options) (*CompiledUnit, error) {
	inBindings, err := bindInputs(frag, inputs)
	if err != nil {
		return nil, err
	}
	outBindings, err := bindOutputs(frag, outputs)
	if err != nil {
		return nil, err
	}

	e := &emitter{opts: opts}
	refs := make([]IncludeRef, 0, len(includes))
	for _, inc := range includes {
		e.line(fmt.Sprintf("// begin include %q", inc.LogicalPath), Origin{})
		e.text(inc.LogicalPath, true, inc.Body, inc.BodyLines)
		e.line(fmt.Sprintf("// end include %q", inc.LogicalPath), Origin{})
		refs = append(refs, IncludeRef{LogicalPath: inc.LogicalPath, Hash: inc.Hash})
	}

	e.line(fmt.Sprintf("// begin fragment %q", frag.ID), Origin{})
	e.line("{", Origin{})
	for _, b := range inBindings {
		value := b.Slot
		if value == "" {
			value = b.Default
		}
		e.line(fmt.Sprintf("\t%s %s = %s;", b.Type, b.Symbol, value), Origin{})
	}
	for _, b := range outBindings {
		e.line(fmt.Sprintf("\t%s %s;", b.Type, b.Symbol), Origin{})
	}
	e.text(frag.ID, false, frag.Body, frag.BodyLines)
	for _, b := range outBindings {
		e.line(fmt.Sprintf("\t%s = %s;", b.Slot, b.Symbol), Origin{})
	}
	e.line("}", Origin{})
	e.line(fmt.Sprintf("// end fragment %q", frag.ID), Origin{})

	return &CompiledUnit{
		FragmentID: frag.ID,
		Source:     e.sb.String(),
		Inputs:     inBindings,
		Outputs:    outBindings,
		Includes:   refs,
		Defines:    frag.Defines,
		SourceMap:  SourceMap{Lines: e.origins},
	}, nil
}

type emitter struct {
	opts    Options
	sb      strings.Builder
	origins []Origin
}

func (e *emitter) line(text string, origin Origin) {
	e.sb.WriteString(text)
	e.sb.WriteByte('\n')
	e.origins = append(e.origins, origin)
}

// text emits original lines, restarting #line numbering whenever stripped
// directives left a gap.
func (e *emitter) text(name string, isInclude bool, body string, bodyLines []int) {
	if len(bodyLines) == 0 {
		return
	}
	lines := strings.Split(body, "\n")
	prev := -1
	for i, text := range lines {
		if i >= len(bodyLines) {
			break
		}
		orig := bodyLines[i]
		if e.opts.LineDirectives && orig != prev+1 {
			e.line(fmt.Sprintf("#line %d %q", orig, name), Origin{})
		}
		e.line(text, Origin{Name: name, Line: orig, IsInclude: isInclude})
		prev = orig
	}
}

func bindInputs(frag *fragment.Fragment, slots []Slot) ([]Binding, error) {
	if len(slots) > len(frag.Inputs) {
		return nil, mismatch(frag, 0, "%d input slots provided but %d inputs declared", len(slots), len(frag.Inputs))
	}

	bindings := make([]Binding, 0, len(frag.Inputs))
	for i, decl := range frag.Inputs {
		info, _ := fragment.LookupType(decl.Type)
		b := Binding{Symbol: decl.Name, Type: info.Name, Default: decl.Default}

		if i >= len(slots) || slots[i].Var == "" {
			if decl.Default == "" {
				return nil, mismatch(frag, decl.Line, "input slot %d (%s %s) is unbound and has no default", i, info.Name, decl.Name)
			}
			bindings = append(bindings, b)
			continue
		}

		if err := checkSlot(frag, "input", i, decl.Name, info.Name, decl.Line, slots[i]); err != nil {
			return nil, err
		}
		b.Slot = slots[i].Var
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func bindOutputs(frag *fragment.Fragment, slots []Slot) ([]Binding, error) {
	if len(slots) > len(frag.Outputs) {
		return nil, mismatch(frag, 0, "%d output slots provided but %d outputs declared", len(slots), len(frag.Outputs))
	}

	bindings := make([]Binding, 0, len(frag.Outputs))
	seen := make(map[string]int)
	for i, decl := range frag.Outputs {
		info, _ := fragment.LookupType(decl.Type)
		if i >= len(slots) || slots[i].Var == "" {
			return nil, mismatch(frag, decl.Line, "output slot %d (%s %s) is unbound", i, info.Name, decl.Name)
		}
		if err := checkSlot(frag, "output", i, decl.Name, info.Name, decl.Line, slots[i]); err != nil {
			return nil, err
		}
		if prev, dup := seen[slots[i].Var]; dup {
			return nil, mismatch(frag, decl.Line, "output slots %d and %d both write %q", prev, i, slots[i].Var)
		}
		seen[slots[i].Var] = i
		bindings = append(bindings, Binding{Symbol: decl.Name, Type: info.Name, Slot: slots[i].Var})
	}
	return bindings, nil
}

func checkSlot(frag *fragment.Fragment, dir string, i int, name, typ string, line int, slot Slot) error {
	if slot.Name != "" && slot.Name != name {
		return mismatch(frag, line, "%s slot %d is bound to %q but the declaration is named %q", dir, i, slot.Name, name)
	}
	if slot.Type != "" && !fragment.SameType(slot.Type, typ) {
		return mismatch(frag, line, "%s slot %d (%s): declared as %s, slot provides %s", dir, i, name, typ, slot.Type)
	}
	if !isIdent(slot.Var) {
		return mismatch(frag, line, "%s slot %d (%s): %q is not a valid variable name", dir, i, name, slot.Var)
	}
	if _, in := frag.Input(slot.Var); in {
		return mismatch(frag, line, "%s slot %d (%s): variable %q shadows a declared input", dir, i, name, slot.Var)
	}
	if _, out := frag.Output(slot.Var); out {
		return mismatch(frag, line, "%s slot %d (%s): variable %q shadows a declared output", dir, i, name, slot.Var)
	}
	return nil
}

func mismatch(frag *fragment.Fragment, line int, format string, args ...any) error {
	return compileerr.New(compileerr.TypeMismatch, compileerr.Location{
		FragmentID: frag.ID,
		Line:       line,
		Offset:     -1,
	}, format, args...)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
