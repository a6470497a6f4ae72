package hcl

// projectFile is the top-level structure of a project file. Unknown
// blocks and attributes are decode errors.
type projectFile struct {
	Settings  *settingsBlock   `hcl:"settings,block"`
	Fragments []*fragmentBlock `hcl:"fragment,block"`
}

type settingsBlock struct {
	IncludeSearchRoots      []string `hcl:"include_search_roots,optional"`
	DuplicateIncludeIsError *bool    `hcl:"duplicate_include_is_error,optional"`
	LineDirectives          *bool    `hcl:"line_directives,optional"`
	ParseCacheSize          *int     `hcl:"parse_cache_size,optional"`
}

type fragmentBlock struct {
	ID         string       `hcl:"id,label"`
	Source     *string      `hcl:"source,optional"`
	Text       *string      `hcl:"text,optional"`
	OutputFile *string      `hcl:"output_file,optional"`
	Uses       []string     `hcl:"uses,optional"`
	Inputs     []*slotBlock `hcl:"input,block"`
	Outputs    []*slotBlock `hcl:"output,block"`
}

type slotBlock struct {
	Name string  `hcl:"name,label"`
	Var  *string `hcl:"var,optional"`
	Type *string `hcl:"type,optional"`
}
