package symbols

// Kind distinguishes the two definition kinds.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
)

// ImportKind distinguishes `import x` from `from m import x`.
type ImportKind string

const (
	ImportPlain ImportKind = "import"
	ImportFrom  ImportKind = "import_from"
)

// TouchMode says whether a bare name was written or read.
type TouchMode string

const (
	TouchAssignment TouchMode = "assignment"
	TouchUsage      TouchMode = "usage"
)

// CallType is the constant record type carried by every CallSite.
const CallType = "call"

// Param is one positional parameter of a function signature.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Signature describes the positional parameters and return annotation of a function.
type Signature struct {
	Args       []Param `json:"args"`
	ReturnType string  `json:"return_type,omitempty"`
	ArgCount   int     `json:"arg_count"`
}

// Definition is one class or function (methods and async functions included).
// Optional fields are omitted from JSON when capture was disabled or the
// value could not be reconstructed.
type Definition struct {
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualified_name"`
	Kind          Kind       `json:"type"`
	Line          int        `json:"line"`
	ColOffset     int        `json:"col_offset"`
	Scope         []string   `json:"scope"`
	IsMethod      bool       `json:"is_method"`
	IsAsync       bool       `json:"is_async,omitempty"`
	Docstring     *string    `json:"docstring,omitempty"`
	Decorators    []string   `json:"decorators,omitempty"`
	Bases         []string   `json:"bases,omitempty"`
	BaseCount     int        `json:"base_count,omitempty"`
	Signature     *Signature `json:"signature,omitempty"`
	BodyText      *string    `json:"body_text,omitempty"`
	BodyLineCount int        `json:"body_line_count,omitempty"`
}

// ImportRef is one imported name. A statement importing several names
// yields one ImportRef per name.
type ImportRef struct {
	Name         string     `json:"name"`
	AsName       string     `json:"as_name,omitempty"`
	Kind         ImportKind `json:"type"`
	Line         int        `json:"line"`
	ColOffset    int        `json:"col_offset"`
	Module       string     `json:"module,omitempty"`
	ImportedName string     `json:"imported_name,omitempty"`
	Level        int        `json:"level,omitempty"`
}

// LeafName is the name the import binds in the importing module before
// aliasing: the imported name for from-imports, the last dotted segment otherwise.
func (i ImportRef) LeafName() string {
	if i.ImportedName != "" {
		return i.ImportedName
	}
	return lastSegment(i.Name)
}

// Origin is the module the import pulls from: the from-module, or the first
// dotted segment of a plain import.
func (i ImportRef) Origin() string {
	if i.Module != "" {
		return i.Module
	}
	return firstSegment(i.Name)
}

// Relative reports whether the import is relative to the importing package.
func (i ImportRef) Relative() bool {
	return i.Level > 0
}

// CallSite is one invocation.
type CallSite struct {
	Name          string   `json:"name"`
	QualifiedCall string   `json:"qualified_call"`
	Type          string   `json:"type"`
	Line          int      `json:"line"`
	ColOffset     int      `json:"col_offset"`
	Scope         []string `json:"scope"`
}

// VariableTouch is one read or write of a bare name.
type VariableTouch struct {
	Name      string    `json:"name"`
	Line      int       `json:"line"`
	ColOffset int       `json:"col_offset"`
	Scope     []string  `json:"scope"`
	Mode      TouchMode `json:"type"`
}

// SymbolSet is everything extracted from one source unit.
type SymbolSet struct {
	Definitions []Definition    `json:"definitions"`
	Calls       []CallSite      `json:"calls"`
	Imports     []ImportRef     `json:"imports"`
	Variables   []VariableTouch `json:"variables"`
}

func newSymbolSet() *SymbolSet {
	return &SymbolSet{
		Definitions: []Definition{},
		Calls:       []CallSite{},
		Imports:     []ImportRef{},
		Variables:   []VariableTouch{},
	}
}

// Total is the number of records of all four kinds.
func (s *SymbolSet) Total() int {
	if s == nil {
		return 0
	}
	return len(s.Definitions) + len(s.Calls) + len(s.Imports) + len(s.Variables)
}

// FileSymbols pairs a source unit's path with its extracted symbols.
// Symbols is nil for units that were not parsed or failed to parse.
type FileSymbols struct {
	Path    string
	Symbols *SymbolSet
}
