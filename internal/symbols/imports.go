package symbols

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/parser"
)

// relativeModule is the module recorded for `from . import x`.
const relativeModule = "."

func (e *extractor) recordImports(n *tree_sitter.Node) {
	line, col := parser.Line(n), parser.Column(n)
	cursor := n.Walk()
	defer cursor.Close()
	switch {
	case e.kinds.importName[n.Kind()]:
		for _, name := range n.ChildrenByFieldName("name", cursor) {
			dotted, alias := e.importedName(&name)
			if dotted == "" {
				continue
			}
			e.set.Imports = append(e.set.Imports, ImportRef{
				Name:      dotted,
				AsName:    alias,
				Kind:      ImportPlain,
				Line:      line,
				ColOffset: col,
			})
		}
	case e.kinds.importFrom[n.Kind()]:
		// from __future__ import x has no module_name field
		module, level := "__future__", 0
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			module, level = e.fromModule(mod)
		}
		add := func(imported, alias string) {
			e.set.Imports = append(e.set.Imports, ImportRef{
				Name:         module + "." + imported,
				AsName:       alias,
				Kind:         ImportFrom,
				Line:         line,
				ColOffset:    col,
				Module:       module,
				ImportedName: imported,
				Level:        level,
			})
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if c := n.NamedChild(i); c != nil && c.Kind() == "wildcard_import" {
				add("*", "")
			}
		}
		for _, name := range n.ChildrenByFieldName("name", cursor) {
			imported, alias := e.importedName(&name)
			if imported != "" {
				add(imported, alias)
			}
		}
	}
}

// importedName splits a dotted_name or aliased_import into name and alias.
func (e *extractor) importedName(n *tree_sitter.Node) (name, alias string) {
	if n.Kind() == "aliased_import" {
		if nm := n.ChildByFieldName("name"); nm != nil {
			name = compactExpr(e.text(nm))
		}
		if al := n.ChildByFieldName("alias"); al != nil {
			alias = e.text(al)
		}
		return name, alias
	}
	return compactExpr(e.text(n)), ""
}

// fromModule returns the module of a from-import with its leading dots
// stripped, and the number of dots. A bare relative import yields ".".
func (e *extractor) fromModule(n *tree_sitter.Node) (string, int) {
	if n == nil {
		return relativeModule, 0
	}
	text := strings.ReplaceAll(compactExpr(e.text(n)), " ", "")
	trimmed := strings.TrimLeft(text, ".")
	level := len(text) - len(trimmed)
	if trimmed == "" {
		return relativeModule, level
	}
	return trimmed, level
}
