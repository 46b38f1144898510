package parser

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/DeusData/codeindex/internal/lang"
)

// ErrSyntax is returned by ParseStrict when the tree contains error or missing nodes.
var ErrSyntax = errors.New("syntax error")

var (
	languagesOnce sync.Once
	languages     map[lang.Language]*tree_sitter.Language
	parserPools   map[lang.Language]*sync.Pool
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Language]*tree_sitter.Language{
			lang.Python: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		}

		parserPools = make(map[lang.Language]*sync.Pool, len(languages))
		for l, tsLang := range languages {
			tsLang := tsLang
			parserPools[l] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// GetLanguage returns the tree-sitter Language for a lang.Language.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	initLanguages()
	tsLang, ok := languages[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	return tsLang, nil
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done.
// Parsers are pooled per language via sync.Pool to avoid per-file allocation.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	initLanguages()

	pool, ok := parserPools[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}

	return tree, nil
}

// ParseStrict is Parse for sources that must be syntactically valid.
// A tree with error or missing nodes is closed and ErrSyntax is returned
// with the position of the first offending node.
func ParseStrict(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%w: source is not valid UTF-8", ErrSyntax)
	}
	tree, err := Parse(l, source)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	if !root.HasError() {
		return tree, nil
	}
	pos := FirstError(root)
	tree.Close()
	if pos == nil {
		return nil, ErrSyntax
	}
	return nil, fmt.Errorf("%w at line %d column %d", ErrSyntax, pos.Row+1, pos.Column)
}

// FirstError returns the start point of the first ERROR or MISSING node, if any.
func FirstError(root *tree_sitter.Node) *tree_sitter.Point {
	var found *tree_sitter.Point
	Walk(root, func(n *tree_sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			p := n.StartPosition()
			found = &p
			return false
		}
		return n.HasError()
	})
	return found
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// Line returns the 1-based start line of a node.
func Line(node *tree_sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// Column returns the 0-based start column (in bytes) of a node.
func Column(node *tree_sitter.Node) int {
	return int(node.StartPosition().Column)
}
