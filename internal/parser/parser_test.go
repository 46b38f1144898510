package parser

import (
	"errors"
	"strings"
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/lang"
)

func TestParsePython(t *testing.T) {
	source := []byte(`def greet(name):
    return f"Hello, {name}"

class MyClass:
    def method(self):
        pass
`)
	tree, err := Parse(lang.Python, source)
	if err != nil {
		t.Fatalf("Parse Python: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var funcCount, classCount int
	Walk(root, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "function_definition":
			funcCount++
		case "class_definition":
			classCount++
		}
		return true
	})
	if funcCount != 2 {
		t.Errorf("expected 2 function_definitions, got %d", funcCount)
	}
	if classCount != 1 {
		t.Errorf("expected 1 class_definition, got %d", classCount)
	}
}

func TestParseUnsupported(t *testing.T) {
	if _, err := Parse(lang.Kotlin, []byte("fun main() {}")); err == nil {
		t.Fatal("expected error for unsupported language")
	}
	if _, err := GetLanguage(lang.Markdown); err == nil {
		t.Fatal("expected GetLanguage error for markdown")
	}
	if _, err := GetLanguage(lang.Python); err != nil {
		t.Fatalf("GetLanguage(python): %v", err)
	}
}

func TestParseStrict(t *testing.T) {
	tree, err := ParseStrict(lang.Python, []byte("x = 1\n"))
	if err != nil {
		t.Fatalf("valid source: %v", err)
	}
	tree.Close()

	_, err = ParseStrict(lang.Python, []byte("x = 1\ndef broken(:\n    pass\n"))
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should carry the line: %v", err)
	}

	_, err = ParseStrict(lang.Python, []byte{'x', '=', 0xff, '\n'})
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("invalid UTF-8: expected ErrSyntax, got %v", err)
	}
}

func TestFirstErrorNone(t *testing.T) {
	tree, err := Parse(lang.Python, []byte("def ok():\n    return 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	if pos := FirstError(tree.RootNode()); pos != nil {
		t.Errorf("unexpected error node at %+v", *pos)
	}
}

func TestPositions(t *testing.T) {
	source := []byte("a = 1\nif a:\n    call(a)\n")
	tree, err := Parse(lang.Python, source)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	var call *tree_sitter.Node
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "call" && call == nil {
			call = n
			return false
		}
		return true
	})
	if call == nil {
		t.Fatal("no call node")
	}
	if Line(call) != 3 || Column(call) != 4 {
		t.Errorf("call at %d:%d, want 3:4", Line(call), Column(call))
	}
	if got := NodeText(call, source); got != "call(a)" {
		t.Errorf("NodeText = %q", got)
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	tree, err := Parse(lang.Python, []byte("class A:\n    def m(self):\n        pass\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	var funcs int
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "function_definition" {
			funcs++
		}
		return n.Kind() != "class_definition"
	})
	if funcs != 0 {
		t.Errorf("walk descended into a skipped class: %d functions", funcs)
	}
}
