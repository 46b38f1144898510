package symbols

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/lang"
	"github.com/DeusData/codeindex/internal/parser"
)

// ErrSyntax marks a source unit that could not be parsed.
var ErrSyntax = parser.ErrSyntax

// Options toggles optional capture. Disabled fields are omitted, not emptied.
type Options struct {
	IncludeBody       bool
	IncludeDocstrings bool
}

// DefaultOptions captures everything.
func DefaultOptions() Options {
	return Options{IncludeBody: true, IncludeDocstrings: true}
}

// ExtractSource parses Python source and extracts its symbols.
func ExtractSource(source []byte, opts Options) (*SymbolSet, error) {
	tree, err := parser.ParseStrict(lang.Python, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return Extract(tree, source, opts)
}

// Extract walks a parsed Python tree once and returns its SymbolSet.
// A tree containing syntax errors yields ErrSyntax and no symbols.
func Extract(tree *tree_sitter.Tree, source []byte, opts Options) (*SymbolSet, error) {
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: empty tree", ErrSyntax)
	}
	if root.HasError() {
		if pos := parser.FirstError(root); pos != nil {
			return nil, fmt.Errorf("%w at line %d column %d", ErrSyntax, pos.Row+1, pos.Column)
		}
		return nil, ErrSyntax
	}
	e := &extractor{source: source, opts: opts, kinds: pythonKinds, set: newSymbolSet()}
	e.visit(root, modeLoad)
	return e.set, nil
}

// mode is the syntactic context of a bare name.
type mode int

const (
	modeLoad mode = iota
	modeStore
	modeSkip
)

// extractor holds the state of one extraction run. It is not reused.
type extractor struct {
	source []byte
	opts   Options
	kinds  *nodeKinds
	scope  ScopeStack
	set    *SymbolSet
}

func (e *extractor) text(n *tree_sitter.Node) string {
	return parser.NodeText(n, e.source)
}

func (e *extractor) visit(n *tree_sitter.Node, m mode) {
	if n == nil || m == modeSkip {
		return
	}
	kind := n.Kind()
	switch {
	case e.kinds.definition(kind):
		e.visitDefinition(n, nil)
		return
	case e.kinds.call[kind]:
		e.recordCall(n)
		e.visitFields(n, modeLoad, nil)
		return
	case e.kinds.imports(kind):
		e.recordImports(n)
		return
	}
	switch kind {
	case "identifier":
		e.touch(n, m)
	case "decorated_definition":
		def := n.ChildByFieldName("definition")
		if def == nil {
			e.visitFields(n, modeLoad, nil)
			return
		}
		e.visitDefinition(def, n)
	case "attribute":
		// The object of an attribute is always read, even on the left of an assignment.
		e.visitFields(n, modeLoad, map[string]mode{"attribute": modeSkip})
	case "subscript", "slice":
		e.visitFields(n, modeLoad, nil)
	case "keyword_argument":
		e.visitFields(n, modeLoad, map[string]mode{"name": modeSkip})
	case "assignment", "augmented_assignment":
		e.visitFields(n, modeLoad, map[string]mode{"left": modeStore})
	case "for_statement", "for_in_clause":
		e.visitFields(n, modeLoad, map[string]mode{"left": modeStore})
	case "named_expression":
		e.visitFields(n, modeLoad, map[string]mode{"name": modeStore})
	case "as_pattern":
		e.visitFields(n, modeLoad, map[string]mode{"alias": modeStore})
	case "lambda":
		e.visitFields(n, modeLoad, map[string]mode{"parameters": modeSkip})
		if params := n.ChildByFieldName("parameters"); params != nil {
			e.visitParams(params)
		}
	case "except_clause":
		e.visitExcept(n)
	case "delete_statement":
		e.visitDelete(n)
	case "case_pattern":
		e.visitPattern(n)
	case "global_statement", "nonlocal_statement", "dotted_name", "comment":
		// no variable touches
	default:
		for i := uint(0); i < n.ChildCount(); i++ {
			e.visit(n.Child(i), m)
		}
	}
}

// visitFields visits the children of n in source order. Children under a
// field listed in fields use that mode; all others use def.
func (e *extractor) visitFields(n *tree_sitter.Node, def mode, fields map[string]mode) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		m := def
		if fields != nil {
			if fm, ok := fields[n.FieldNameForChild(uint32(i))]; ok {
				m = fm
			}
		}
		e.visit(child, m)
	}
}

func (e *extractor) touch(n *tree_sitter.Node, m mode) {
	t := VariableTouch{
		Name:      e.text(n),
		Line:      parser.Line(n),
		ColOffset: parser.Column(n),
		Scope:     e.scope.Names(),
		Mode:      TouchUsage,
	}
	if m == modeStore {
		t.Mode = TouchAssignment
	}
	e.set.Variables = append(e.set.Variables, t)
}

// visitDefinition emits the definition, then descends inside its frame.
// wrapper is the enclosing decorated_definition, if any.
func (e *extractor) visitDefinition(def, wrapper *tree_sitter.Node) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.text(nameNode)
	kind, frame := KindFunction, FrameFunction
	if e.kinds.class[def.Kind()] {
		kind, frame = KindClass, FrameClass
	}

	d := Definition{
		Name:          name,
		QualifiedName: e.scope.Qualify(name),
		Kind:          kind,
		Line:          parser.Line(def),
		ColOffset:     parser.Column(def),
		IsMethod:      kind == KindFunction && e.scope.InClass(),
	}
	e.scope.Push(frame, name)
	d.Scope = e.scope.Names()

	if wrapper != nil {
		d.Decorators = e.decorators(wrapper)
	}
	if e.opts.IncludeDocstrings {
		if doc, ok := extractDocstring(def, e.source); ok {
			d.Docstring = &doc
		}
	}
	switch kind {
	case KindClass:
		d.Bases = classBases(def, e.source)
		d.BaseCount = len(d.Bases)
	case KindFunction:
		d.IsAsync = isAsync(def)
		d.Signature = signature(def, e.source)
		d.BodyLineCount = statementCount(def.ChildByFieldName("body"))
		if e.opts.IncludeBody {
			d.BodyText = bodyText(def, wrapper, e.source)
		}
	}
	e.set.Definitions = append(e.set.Definitions, d)

	if wrapper != nil {
		for i := uint(0); i < wrapper.NamedChildCount(); i++ {
			if c := wrapper.NamedChild(i); c != nil && e.kinds.decorator[c.Kind()] {
				e.visit(c, modeLoad)
			}
		}
	}
	for i := uint(0); i < def.ChildCount(); i++ {
		child := def.Child(i)
		if child == nil {
			continue
		}
		switch def.FieldNameForChild(uint32(i)) {
		case "name":
		case "parameters":
			e.visitParams(child)
		default:
			e.visit(child, modeLoad)
		}
	}
	e.scope.Pop()
}

// visitParams records reads inside annotations and default values.
// Parameter names themselves are not variable touches.
func (e *extractor) visitParams(params *tree_sitter.Node) {
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "typed_parameter":
			e.visit(p.ChildByFieldName("type"), modeLoad)
		case "default_parameter":
			e.visit(p.ChildByFieldName("value"), modeLoad)
		case "typed_default_parameter":
			e.visit(p.ChildByFieldName("type"), modeLoad)
			e.visit(p.ChildByFieldName("value"), modeLoad)
		}
	}
}

// visitExcept skips the name bound by `except E as name`.
func (e *extractor) visitExcept(n *tree_sitter.Node) {
	afterAs := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch {
		case !child.IsNamed():
			if child.Kind() == "as" {
				afterAs = true
			}
		case child.Kind() == "as_pattern":
			e.visitFields(child, modeLoad, map[string]mode{"alias": modeSkip})
		case afterAs && child.Kind() != "block":
			afterAs = false
		case n.FieldNameForChild(uint32(i)) == "alias":
		default:
			e.visit(child, modeLoad)
		}
	}
}

// visitDelete skips deleted bare names; subscripts and attributes inside
// the statement are still reads.
func (e *extractor) visitDelete(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
		case "expression_list", "tuple", "list", "parenthesized_expression":
			e.visitDelete(child)
		default:
			e.visit(child, modeLoad)
		}
	}
}

// visitPattern records the reads inside a match-case pattern: the head of a
// dotted value pattern and the class of a class pattern. Capture names and
// keyword pattern names bind or label, so they are not touches.
func (e *extractor) visitPattern(n *tree_sitter.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "dotted_name":
		if head := n.NamedChild(0); head != nil && n.NamedChildCount() > 1 {
			e.touch(head, modeLoad)
		}
		return
	case "class_pattern":
		if cls := n.NamedChild(0); cls != nil && cls.Kind() == "dotted_name" {
			if head := cls.NamedChild(0); head != nil {
				e.touch(head, modeLoad)
			}
		}
		for i := uint(1); i < n.NamedChildCount(); i++ {
			e.visitPattern(n.NamedChild(i))
		}
		return
	case "identifier":
		return
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		e.visitPattern(n.NamedChild(i))
	}
}

func (e *extractor) recordCall(n *tree_sitter.Node) {
	callee := classifyCallee(n.ChildByFieldName("function"), e.source, &e.scope)
	if callee == nil {
		return
	}
	e.set.Calls = append(e.set.Calls, CallSite{
		Name:          callee.Text(),
		QualifiedCall: callee.Guess(),
		Type:          CallType,
		Line:          parser.Line(n),
		ColOffset:     parser.Column(n),
		Scope:         e.scope.Names(),
	})
}

func (e *extractor) decorators(wrapper *tree_sitter.Node) []string {
	var out []string
	for i := uint(0); i < wrapper.NamedChildCount(); i++ {
		c := wrapper.NamedChild(i)
		if c == nil || !e.kinds.decorator[c.Kind()] {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(e.text(c), "@"))
		out = append(out, compactExpr(text))
	}
	return out
}

// classBases returns the positional base expressions; keyword arguments
// such as metaclass= are not bases.
func classBases(def *tree_sitter.Node, source []byte) []string {
	sup := def.ChildByFieldName("superclasses")
	if sup == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < sup.NamedChildCount(); i++ {
		c := sup.NamedChild(i)
		if c == nil || c.Kind() == "keyword_argument" || c.Kind() == "comment" {
			continue
		}
		out = append(out, compactExpr(parser.NodeText(c, source)))
	}
	return out
}

func isAsync(def *tree_sitter.Node) bool {
	first := def.Child(0)
	return first != nil && first.Kind() == "async"
}

// signature collects the ordinary positional parameters: those after a `/`
// marker and before any `*`, `*args` or `**kwargs`.
func signature(def *tree_sitter.Node, source []byte) *Signature {
	sig := &Signature{Args: []Param{}}
	if rt := def.ChildByFieldName("return_type"); rt != nil {
		sig.ReturnType = compactExpr(parser.NodeText(rt, source))
	}
	params := def.ChildByFieldName("parameters")
	if params == nil {
		return sig
	}
collect:
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "positional_separator":
			sig.Args = sig.Args[:0]
		case "keyword_separator", "list_splat_pattern", "dictionary_splat_pattern":
			break collect
		case "identifier":
			sig.Args = append(sig.Args, Param{Name: parser.NodeText(p, source)})
		case "typed_parameter":
			name := p.NamedChild(0)
			if name == nil || name.Kind() != "identifier" {
				// *args: T and **kwargs: T end the positional list
				break collect
			}
			sig.Args = append(sig.Args, Param{
				Name: parser.NodeText(name, source),
				Type: typeText(p, source),
			})
		case "default_parameter", "typed_default_parameter":
			name := p.ChildByFieldName("name")
			if name == nil {
				continue
			}
			sig.Args = append(sig.Args, Param{
				Name: parser.NodeText(name, source),
				Type: typeText(p, source),
			})
		}
	}
	sig.ArgCount = len(sig.Args)
	return sig
}

func typeText(p *tree_sitter.Node, source []byte) string {
	if t := p.ChildByFieldName("type"); t != nil {
		return compactExpr(parser.NodeText(t, source))
	}
	return ""
}

func statementCount(block *tree_sitter.Node) int {
	if block == nil {
		return 0
	}
	n := 0
	for i := uint(0); i < block.NamedChildCount(); i++ {
		if c := block.NamedChild(i); c != nil && c.Kind() != "comment" {
			n++
		}
	}
	return n
}

// bodyText returns the verbatim source of the definition, decorators
// included, with continuation lines dedented to the definition's column.
// It returns nil when the text is not valid UTF-8.
func bodyText(def, wrapper *tree_sitter.Node, source []byte) *string {
	outer := def
	if wrapper != nil {
		outer = wrapper
	}
	raw := parser.NodeText(outer, source)
	if !utf8.ValidString(raw) {
		return nil
	}
	text := dedent(raw, parser.Column(outer))
	return &text
}

func dedent(s string, col int) string {
	if col == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		j := 0
		for j < col && j < len(line) && (line[j] == ' ' || line[j] == '\t') {
			j++
		}
		lines[i] = line[j:]
	}
	return strings.Join(lines, "\n")
}
