package symbols

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustExtract(t *testing.T, src string, opts Options) *SymbolSet {
	t.Helper()
	set, err := ExtractSource([]byte(src), opts)
	if err != nil {
		t.Fatalf("ExtractSource: %v", err)
	}
	return set
}

func findDef(set *SymbolSet, name string) *Definition {
	for i := range set.Definitions {
		if set.Definitions[i].Name == name {
			return &set.Definitions[i]
		}
	}
	return nil
}

func TestQualifiedNamesIgnoreFunctionScopes(t *testing.T) {
	src := `class Widget:
    def outer(self):
        def helper():
            pass
        return helper

    class Inner:
        def m(self):
            pass

def top():
    class Local:
        pass
`
	set := mustExtract(t, src, DefaultOptions())

	tests := []struct {
		name      string
		qualified string
		scope     []string
		isMethod  bool
	}{
		{"Widget", "Widget", []string{"Widget"}, false},
		{"outer", "Widget.outer", []string{"Widget", "outer"}, true},
		{"helper", "Widget.helper", []string{"Widget", "outer", "helper"}, true},
		{"Inner", "Widget.Inner", []string{"Widget", "Inner"}, false},
		{"m", "Widget.Inner.m", []string{"Widget", "Inner", "m"}, true},
		{"top", "top", []string{"top"}, false},
		{"Local", "Local", []string{"top", "Local"}, false},
	}
	if len(set.Definitions) != len(tests) {
		t.Fatalf("got %d definitions, want %d", len(set.Definitions), len(tests))
	}
	for i, tt := range tests {
		d := set.Definitions[i]
		if d.Name != tt.name {
			t.Errorf("definition %d: name %q, want %q (definitions are emitted on entry)", i, d.Name, tt.name)
			continue
		}
		if d.QualifiedName != tt.qualified {
			t.Errorf("%s: qualified %q, want %q", tt.name, d.QualifiedName, tt.qualified)
		}
		if !reflect.DeepEqual(d.Scope, tt.scope) {
			t.Errorf("%s: scope %v, want %v", tt.name, d.Scope, tt.scope)
		}
		if d.IsMethod != tt.isMethod {
			t.Errorf("%s: is_method %v, want %v", tt.name, d.IsMethod, tt.isMethod)
		}
	}
}

func TestFunctionDetails(t *testing.T) {
	src := `import functools

class Service(Base, mixins.Loggable, metaclass=Meta):
    """Runs jobs.

    Long description.
    """

    @functools.cache
    async def fetch(self, url: str, retries=3, *args, timeout: float = 1.0, **kw) -> bytes:
        """Fetch a URL."""
        data = await get(url)
        return data
`
	set := mustExtract(t, src, DefaultOptions())

	cls := findDef(set, "Service")
	if cls == nil {
		t.Fatal("Service not found")
	}
	if !reflect.DeepEqual(cls.Bases, []string{"Base", "mixins.Loggable"}) || cls.BaseCount != 2 {
		t.Errorf("bases = %v (%d)", cls.Bases, cls.BaseCount)
	}
	if cls.Docstring == nil || *cls.Docstring != "Runs jobs.\n\nLong description." {
		t.Errorf("class docstring = %v", cls.Docstring)
	}
	if cls.Signature != nil || cls.BodyText != nil {
		t.Error("class should carry neither signature nor body text")
	}

	fn := findDef(set, "fetch")
	if fn == nil {
		t.Fatal("fetch not found")
	}
	if !fn.IsAsync || !fn.IsMethod {
		t.Errorf("fetch: async=%v method=%v", fn.IsAsync, fn.IsMethod)
	}
	if fn.Line != 10 {
		t.Errorf("fetch line = %d, want 10 (the def line, not the decorator)", fn.Line)
	}
	if !reflect.DeepEqual(fn.Decorators, []string{"functools.cache"}) {
		t.Errorf("decorators = %v", fn.Decorators)
	}
	wantArgs := []Param{{Name: "self"}, {Name: "url", Type: "str"}, {Name: "retries"}}
	if fn.Signature == nil || !reflect.DeepEqual(fn.Signature.Args, wantArgs) {
		t.Fatalf("signature args = %+v", fn.Signature)
	}
	if fn.Signature.ArgCount != 3 || fn.Signature.ReturnType != "bytes" {
		t.Errorf("signature = %+v", fn.Signature)
	}
	if fn.BodyLineCount != 3 {
		t.Errorf("body_line_count = %d, want 3", fn.BodyLineCount)
	}
	if fn.BodyText == nil || !strings.HasPrefix(*fn.BodyText, "@functools.cache\nasync def fetch") {
		t.Errorf("body_text = %v", fn.BodyText)
	}
	if fn.BodyText != nil && !strings.Contains(*fn.BodyText, "\n    data = await get(url)") {
		t.Errorf("body_text not dedented to the definition column:\n%s", *fn.BodyText)
	}
}

func TestTogglesOmitFields(t *testing.T) {
	src := `def f():
    """Doc."""
    return 1
`
	set := mustExtract(t, src, Options{})
	fn := findDef(set, "f")
	if fn.Docstring != nil {
		t.Error("docstring should be absent when capture is disabled")
	}
	if fn.BodyText != nil {
		t.Error("body_text should be absent when capture is disabled")
	}
	if fn.Signature == nil {
		t.Error("signature is always captured")
	}
}

func TestDocstringRules(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *string
	}{
		{"single quotes", "def f():\n    'one line'\n", ptr("one line")},
		{"raw prefix", "def f():\n    r\"\"\"raw \\d\"\"\"\n", ptr(`raw \d`)},
		{"fstring", "def f():\n    f\"\"\"{x}\"\"\"\n", nil},
		{"bytes", "def f():\n    b'x'\n", nil},
		{"not first", "def f():\n    x = 1\n    \"\"\"late\"\"\"\n", nil},
		{"comment first", "def f():\n    # note\n    \"\"\"doc\"\"\"\n", ptr("doc")},
		{"tab escape", "def f():\n    \"\"\"Tab\\there\"\"\"\n", ptr("Tab     here")},
		{"hex and unicode escapes", "def f():\n    'caf\\xe9 \\u00e9 \\q'\n", ptr(`café é \q`)},
		{"line continuation", "def f():\n    \"\"\"one \\\ntwo\"\"\"\n", ptr("one two")},
		{"concatenated", "def f():\n    \"one \" \"two\"\n", ptr("one two")},
		{"concatenated fstring", "def f():\n    \"one \" f\"{x}\"\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := mustExtract(t, tt.src, DefaultOptions())
			got := set.Definitions[0].Docstring
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("docstring = %q, want absent", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("docstring = %v, want %q", got, *tt.want)
			}
		})
	}
}

func TestCallShapes(t *testing.T) {
	src := `class Job:
    def run(self):
        helper()
        self.prepare()
        os.path.join("a", "b")
        handlers["x"]()

def free():
    self.orphan()
`
	set := mustExtract(t, src, DefaultOptions())

	want := []struct {
		name, guess string
		scope       []string
	}{
		{"helper", "helper", []string{"Job", "run"}},
		{"self.prepare", "Job.prepare", []string{"Job", "run"}},
		{"os.path.join", "os.path.join", []string{"Job", "run"}},
		{`handlers["x"]`, `handlers["x"]`, []string{"Job", "run"}},
		{"self.orphan", "self.orphan", []string{"free"}},
	}
	if len(set.Calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %+v", len(set.Calls), len(want), set.Calls)
	}
	for i, w := range want {
		c := set.Calls[i]
		if c.Name != w.name || c.QualifiedCall != w.guess || c.Type != CallType {
			t.Errorf("call %d = %q/%q, want %q/%q", i, c.Name, c.QualifiedCall, w.name, w.guess)
		}
		if !reflect.DeepEqual(c.Scope, w.scope) {
			t.Errorf("call %d scope = %v, want %v", i, c.Scope, w.scope)
		}
	}
	if set.Calls[0].Line != 3 || set.Calls[0].ColOffset != 8 {
		t.Errorf("helper() position = %d:%d, want 3:8", set.Calls[0].Line, set.Calls[0].ColOffset)
	}
}

func TestImports(t *testing.T) {
	src := `import os, numpy as np
import a.b.c
from pkg.mod import x, y as z
from . import sibling
from ..parent import thing
from m import *
`
	set := mustExtract(t, src, DefaultOptions())
	want := []ImportRef{
		{Name: "os", Kind: ImportPlain, Line: 1},
		{Name: "numpy", AsName: "np", Kind: ImportPlain, Line: 1},
		{Name: "a.b.c", Kind: ImportPlain, Line: 2},
		{Name: "pkg.mod.x", Kind: ImportFrom, Line: 3, Module: "pkg.mod", ImportedName: "x"},
		{Name: "pkg.mod.y", AsName: "z", Kind: ImportFrom, Line: 3, Module: "pkg.mod", ImportedName: "y"},
		{Name: "..sibling", Kind: ImportFrom, Line: 4, Module: ".", ImportedName: "sibling", Level: 1},
		{Name: "parent.thing", Kind: ImportFrom, Line: 5, Module: "parent", ImportedName: "thing", Level: 2},
		{Name: "m.*", Kind: ImportFrom, Line: 6, Module: "m", ImportedName: "*"},
	}
	if !reflect.DeepEqual(set.Imports, want) {
		t.Errorf("imports:\n got %+v\nwant %+v", set.Imports, want)
	}
	if set.Imports[2].LeafName() != "c" || set.Imports[2].Origin() != "a" {
		t.Errorf("a.b.c leaf/origin = %q/%q", set.Imports[2].LeafName(), set.Imports[2].Origin())
	}
}

func TestVariableTouches(t *testing.T) {
	src := `x = 1
y += x
for i, (j, k) in pairs:
    total = obj.attr[i]
with open(p) as fh:
    pass
try:
    pass
except ValueError as err:
    pass
if (n := len(items)) > 0:
    del x
squares = [v * v for v in data]
call(key=value)
`
	set := mustExtract(t, src, DefaultOptions())

	assigned := map[string]bool{}
	used := map[string]bool{}
	for _, v := range set.Variables {
		switch v.Mode {
		case TouchAssignment:
			assigned[v.Name] = true
		case TouchUsage:
			used[v.Name] = true
		}
	}
	for _, name := range []string{"x", "y", "i", "j", "k", "total", "fh", "n", "squares", "v"} {
		if !assigned[name] {
			t.Errorf("%s should be an assignment", name)
		}
	}
	for _, name := range []string{"pairs", "obj", "open", "p", "ValueError", "len", "items", "data", "call", "value", "v"} {
		if !used[name] {
			t.Errorf("%s should be a usage", name)
		}
	}
	for _, name := range []string{"attr", "err", "key"} {
		if assigned[name] || used[name] {
			t.Errorf("%s should not be a variable touch", name)
		}
	}
}

func TestMatchPatternReads(t *testing.T) {
	src := `match event:
    case Color.RED:
        pass
    case shapes.Point(x=0, y=Axis.Y) as hit:
        pass
    case [first, *rest] if first > limit:
        pass
    case other:
        pass
`
	set := mustExtract(t, src, DefaultOptions())
	used := map[string]bool{}
	for _, v := range set.Variables {
		if v.Mode == TouchAssignment {
			t.Errorf("%s should not be an assignment", v.Name)
		}
		used[v.Name] = true
	}
	for _, name := range []string{"event", "Color", "shapes", "Axis", "first", "limit"} {
		if !used[name] {
			t.Errorf("%s should be a usage", name)
		}
	}
	for _, name := range []string{"RED", "Point", "x", "y", "Y", "hit", "rest", "other"} {
		if used[name] {
			t.Errorf("%s should not be a variable touch", name)
		}
	}
}

func TestParametersAreNotTouches(t *testing.T) {
	set := mustExtract(t, "def f(a, b: int = DEFAULT, *rest, **opts):\n    return a\n", DefaultOptions())
	var names []string
	for _, v := range set.Variables {
		names = append(names, string(v.Mode)+":"+v.Name)
	}
	want := []string{"usage:int", "usage:DEFAULT", "usage:a"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("touches = %v, want %v", names, want)
	}
	for _, v := range set.Variables {
		if !reflect.DeepEqual(v.Scope, []string{"f"}) {
			t.Errorf("%s scope = %v, want [f]", v.Name, v.Scope)
		}
	}
}

func TestSyntaxErrorSkipsUnit(t *testing.T) {
	set, err := ExtractSource([]byte("def broken(:\n    pass\n"), DefaultOptions())
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
	if set != nil {
		t.Errorf("set = %+v, want nil", set)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	src := "class A:\n    def m(self):\n        return self.n()\n"
	a := mustExtract(t, src, DefaultOptions())
	b := mustExtract(t, src, DefaultOptions())
	if !reflect.DeepEqual(a, b) {
		t.Error("two extractions of the same source differ")
	}
}

func TestEmptySource(t *testing.T) {
	set := mustExtract(t, "", DefaultOptions())
	if set.Total() != 0 {
		t.Errorf("Total = %d, want 0", set.Total())
	}
	if set.Definitions == nil || set.Variables == nil {
		t.Error("empty sets should be empty slices, not nil")
	}
}

func ptr(s string) *string { return &s }
