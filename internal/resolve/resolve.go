package resolve

import (
	"strings"

	"github.com/DeusData/codeindex/internal/fqn"
	"github.com/DeusData/codeindex/internal/symbols"
)

// Target is the definition a call resolved to.
type Target struct {
	Name          string
	QualifiedName string
	Kind          symbols.Kind
	File          string
	Line          int
	// FileIndex and DefIndex locate the definition in the input collection.
	FileIndex int
	DefIndex  int
}

// ref is a definition's position in the stable iteration order
// (file order, then definition order within the file).
type ref struct {
	file, def int
}

func (r ref) before(o ref) bool {
	return r.file < o.file || (r.file == o.file && r.def < o.def)
}

// Resolver is the single name-matching service used by both the inverted
// index and the graph, so the two can never disagree on a call site.
//
// A call name matches a definition when it equals the definition's name,
// equals its qualified name, or ends with "."+name. Of all matches the one
// earliest in file order, then definition order, wins. The first-occurrence
// tables below make that an O(1) lookup instead of a scan per call.
type Resolver struct {
	files       []symbols.FileSymbols
	byName      map[string]ref
	byQualified map[string]ref
	// bySuffix maps every path-boundary suffix to the first file carrying it.
	bySuffix map[string]int
}

// New indexes the definitions and paths of files. The slice order is the
// resolution order and must be the same for every consumer.
func New(files []symbols.FileSymbols) *Resolver {
	r := &Resolver{
		files:       files,
		byName:      make(map[string]ref),
		byQualified: make(map[string]ref),
		bySuffix:    make(map[string]int),
	}
	for fi, f := range files {
		for _, s := range fqn.Suffixes(f.Path) {
			if _, ok := r.bySuffix[s]; !ok {
				r.bySuffix[s] = fi
			}
		}
		if f.Symbols == nil {
			continue
		}
		for di, d := range f.Symbols.Definitions {
			at := ref{fi, di}
			if _, ok := r.byName[d.Name]; !ok {
				r.byName[d.Name] = at
			}
			if _, ok := r.byQualified[d.QualifiedName]; !ok {
				r.byQualified[d.QualifiedName] = at
			}
		}
	}
	return r
}

// ResolveName finds the first definition matching a call name.
func (r *Resolver) ResolveName(name string) (Target, bool) {
	if name == "" {
		return Target{}, false
	}
	best, found := ref{}, false
	consider := func(at ref, ok bool) {
		if ok && (!found || at.before(best)) {
			best, found = at, true
		}
	}
	at, ok := r.byName[name]
	consider(at, ok)
	at, ok = r.byQualified[name]
	consider(at, ok)
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i+1 < len(name) {
		at, ok = r.byName[name[i+1:]]
		consider(at, ok)
	}
	if !found {
		return Target{}, false
	}
	return r.target(best), true
}

// ResolveCall resolves a call site by its callee text, falling back to its
// qualified guess when that differs.
func (r *Resolver) ResolveCall(c symbols.CallSite) (Target, bool) {
	if t, ok := r.ResolveName(c.Name); ok {
		return t, true
	}
	if c.QualifiedCall != "" && c.QualifiedCall != c.Name {
		return r.ResolveName(c.QualifiedCall)
	}
	return Target{}, false
}

// ResolveImport maps an absolute dotted import to the first indexed file
// matching one of its candidate paths. Relative and single-segment imports
// are not resolved. There is no package-root awareness: src/pkg/mod.py
// satisfies `import pkg.mod`.
func (r *Resolver) ResolveImport(imp symbols.ImportRef) (string, bool) {
	if imp.Relative() || !strings.Contains(imp.Name, ".") {
		return "", false
	}
	for _, cand := range fqn.Candidates(imp.Name) {
		if fi, ok := r.bySuffix[cand]; ok {
			return r.files[fi].Path, true
		}
	}
	return "", false
}

func (r *Resolver) target(at ref) Target {
	f := r.files[at.file]
	d := f.Symbols.Definitions[at.def]
	return Target{
		Name:          d.Name,
		QualifiedName: d.QualifiedName,
		Kind:          d.Kind,
		File:          f.Path,
		Line:          d.Line,
		FileIndex:     at.file,
		DefIndex:      at.def,
	}
}
