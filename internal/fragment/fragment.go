package fragment

// Input is a declared input pin.
type Input struct {
	Name string
	// Type is the spelling used in the source; see LookupType for the
	// canonical form.
	Type string
	// Default is the literal default expression, or "" if none was given.
	Default string
	Line    int
}

// Output is a declared output pin.
type Output struct {
	Name string
	Type string
	Line int
}

// Directive is an include directive as written in the source.
type Directive struct {
	Path   string
	Line   int
	Column int
	// Angled is true for #include <path>.
	Angled bool
	// Resolved is set by the include resolver once the path has been found.
	Resolved bool
}

// Define is a #define captured from the body.
type Define struct {
	Name  string
	Value string
	Line  int
}

// Fragment is the parsed form of a fragment's source text.
type Fragment struct {
	ID     string
	Source string
	// SourcePath is the logical path of the file the fragment was loaded
	// from, if any. Relative includes resolve against its directory.
	SourcePath string

	Inputs   []Input
	Outputs  []Output
	Includes []Directive
	Defines  []Define

	// Body is the source with declaration and include lines removed.
	Body string
	// BodyLines holds the original 1-based line number of each body line.
	BodyLines []int
}

// Input returns the input with the given name.
func (f *Fragment) Input(name string) (Input, bool) {
	for _, in := range f.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Output returns the output with the given name.
func (f *Fragment) Output(name string) (Output, bool) {
	for _, out := range f.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}
