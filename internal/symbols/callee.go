package symbols

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/parser"
)

// selfName is the conventional name of the current instance.
const selfName = "self"

// Callee is the shape of a call target. The set of implementations is closed:
// CalleeName, CalleeAttribute and CalleeOther.
type Callee interface {
	// Text is the textual reconstruction of the call target.
	Text() string
	// Guess is the qualified-name guess used for resolution.
	Guess() string
	isCallee()
}

// CalleeName is a call through a bare identifier: helper().
type CalleeName struct {
	Name string
}

func (c CalleeName) Text() string  { return c.Name }
func (c CalleeName) Guess() string { return c.Name }
func (CalleeName) isCallee()       {}

// CalleeAttribute is a call through an attribute access: obj.method().
// SelfClass is set when Object is the current instance and a class encloses the call.
type CalleeAttribute struct {
	Object    string
	Attr      string
	SelfClass string
}

func (c CalleeAttribute) Text() string { return c.Object + "." + c.Attr }

func (c CalleeAttribute) Guess() string {
	if c.SelfClass != "" {
		return c.SelfClass + "." + c.Attr
	}
	return c.Text()
}

func (CalleeAttribute) isCallee() {}

// CalleeOther is any other callable expression (subscripts, call results,
// parenthesized lambdas). Only its reconstructed text is known.
type CalleeOther struct {
	Expr string
}

func (c CalleeOther) Text() string  { return c.Expr }
func (c CalleeOther) Guess() string { return c.Expr }
func (CalleeOther) isCallee()       {}

// classifyCallee maps the function node of a call to its Callee shape.
// It returns nil when no usable text can be reconstructed.
func classifyCallee(fn *tree_sitter.Node, source []byte, scope *ScopeStack) Callee {
	if fn == nil || fn.HasError() {
		return nil
	}
	switch fn.Kind() {
	case "identifier":
		return CalleeName{Name: parser.NodeText(fn, source)}
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return nil
		}
		c := CalleeAttribute{
			Object: compactExpr(parser.NodeText(obj, source)),
			Attr:   parser.NodeText(attr, source),
		}
		if obj.Kind() == "identifier" && c.Object == selfName {
			if cls, ok := scope.NearestClass(); ok {
				c.SelfClass = cls
			}
		}
		if c.Object == "" || c.Attr == "" {
			return nil
		}
		return c
	default:
		text := compactExpr(parser.NodeText(fn, source))
		if text == "" {
			return nil
		}
		return CalleeOther{Expr: text}
	}
}

// compactExpr joins an expression that spans several lines into one line.
// Line continuations and the indentation following a line break are dropped.
func compactExpr(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return strings.TrimSpace(s)
	}
	s = strings.ReplaceAll(s, "\\\r\n", "")
	s = strings.ReplaceAll(s, "\\\n", "")
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := range lines {
		if i > 0 {
			lines[i] = strings.TrimLeft(lines[i], " \t")
		}
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, ""))
}

func lastSegment(dotted string) string {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}

func firstSegment(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}
