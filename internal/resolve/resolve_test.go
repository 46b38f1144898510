package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/codeindex/internal/symbols"
)

func defs(names ...[2]string) *symbols.SymbolSet {
	set := &symbols.SymbolSet{}
	for i, n := range names {
		set.Definitions = append(set.Definitions, symbols.Definition{
			Name: n[0], QualifiedName: n[1], Kind: symbols.KindFunction, Line: i + 1,
		})
	}
	return set
}

func fixture() []symbols.FileSymbols {
	return []symbols.FileSymbols{
		{Path: "README.md"},
		{Path: "a.py", Symbols: defs([2]string{"Job", "Job"}, [2]string{"run", "Job.run"})},
		{Path: "pkg/b.py", Symbols: defs([2]string{"helper", "helper"}, [2]string{"run", "run"})},
		{Path: "src/pkg/mod/__init__.py", Symbols: defs()},
	}
}

func TestResolveNameFirstMatchWins(t *testing.T) {
	r := New(fixture())

	tgt, ok := r.ResolveName("run")
	require.True(t, ok)
	require.Equal(t, "a.py", tgt.File, "earliest file wins")
	require.Equal(t, "Job.run", tgt.QualifiedName)

	tgt, ok = r.ResolveName("helper")
	require.True(t, ok)
	require.Equal(t, "pkg/b.py", tgt.File)
	require.Equal(t, 1, tgt.Line)
}

func TestResolveNameQualifiedAndSuffix(t *testing.T) {
	r := New(fixture())

	tgt, ok := r.ResolveName("Job.run")
	require.True(t, ok)
	require.Equal(t, "a.py", tgt.File)

	// suffix match: anything.helper hits helper
	tgt, ok = r.ResolveName("utils.helper")
	require.True(t, ok)
	require.Equal(t, "helper", tgt.Name)

	// the earlier of several matching rules wins, not the more specific one
	tgt, ok = r.ResolveName("Other.run")
	require.True(t, ok)
	require.Equal(t, "a.py", tgt.File)
	require.Equal(t, 1, tgt.DefIndex)

	_, ok = r.ResolveName("missing")
	require.False(t, ok)
	_, ok = r.ResolveName("")
	require.False(t, ok)
}

func TestResolveCallFallsBackToGuess(t *testing.T) {
	files := []symbols.FileSymbols{
		{Path: "a.py", Symbols: defs([2]string{"Job", "Job"}, [2]string{"prepare", "Job.prepare"})},
	}
	r := New(files)

	tgt, ok := r.ResolveCall(symbols.CallSite{Name: "self.prepare", QualifiedCall: "Job.prepare"})
	require.True(t, ok)
	require.Equal(t, "Job.prepare", tgt.QualifiedName)

	_, ok = r.ResolveCall(symbols.CallSite{Name: "x()", QualifiedCall: "x()"})
	require.False(t, ok)
}

func TestResolveImport(t *testing.T) {
	r := New(fixture())

	path, ok := r.ResolveImport(symbols.ImportRef{Name: "pkg.b.helper", Kind: symbols.ImportFrom, Module: "pkg.b", ImportedName: "helper"})
	require.True(t, ok)
	require.Equal(t, "pkg/b.py", path)

	path, ok = r.ResolveImport(symbols.ImportRef{Name: "pkg.mod", Kind: symbols.ImportPlain})
	require.True(t, ok)
	require.Equal(t, "src/pkg/mod/__init__.py", path)

	_, ok = r.ResolveImport(symbols.ImportRef{Name: "..b", Kind: symbols.ImportFrom, Module: ".", ImportedName: "b", Level: 1})
	require.False(t, ok)

	_, ok = r.ResolveImport(symbols.ImportRef{Name: "os.path", Kind: symbols.ImportPlain})
	require.False(t, ok)

	_, ok = r.ResolveImport(symbols.ImportRef{Name: "a", Kind: symbols.ImportPlain})
	require.False(t, ok, "single-segment imports stay unresolved even when a.py exists")
}
