// Package index builds the inverted index: symbol name to definitions and
// usages, imported name to origins, and variable name to touches.
package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DeusData/codeindex/internal/resolve"
	"github.com/DeusData/codeindex/internal/symbols"
)

// ErrStatistics is returned by Validate when stored counts drift from the maps.
var ErrStatistics = errors.New("index statistics do not match contents")

// CallResolver resolves a call site to its definition.
type CallResolver interface {
	ResolveCall(c symbols.CallSite) (resolve.Target, bool)
}

// Definition is a definition record tagged with its file. Every field of
// the extracted definition is carried over.
type Definition struct {
	symbols.Definition
	File string `json:"file"`
}

// Usage is a call site tagged with its file and resolution outcome.
type Usage struct {
	symbols.CallSite
	File       string `json:"file"`
	Resolved   bool   `json:"resolved"`
	ResolvedTo string `json:"resolved_to,omitempty"`
	TargetFile string `json:"target_file,omitempty"`
	TargetLine int    `json:"target_line,omitempty"`
}

// Touch is a variable touch tagged with its file.
type Touch struct {
	symbols.VariableTouch
	File string `json:"file"`
}

// SymbolEntry is the symbol_index value for one name.
type SymbolEntry struct {
	Definitions    []Definition `json:"definitions"`
	Usages         []Usage      `json:"usages"`
	QualifiedNames []string     `json:"qualified_names"`
}

// ImportOrigin records where a name was imported from.
type ImportOrigin struct {
	Module string `json:"module"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	AsName string `json:"as_name,omitempty"`
}

// ImportEntry is the import_map value for one imported leaf name.
type ImportEntry struct {
	FromModules []ImportOrigin    `json:"from_modules"`
	Aliases     map[string]string `json:"aliases"`
}

// VariableEntry is the variable_index value for one name.
type VariableEntry struct {
	Assignments []Touch `json:"assignments"`
	Usages      []Touch `json:"usages"`
}

// Statistics are derived from the maps by summation.
type Statistics struct {
	TotalSymbols             int `json:"total_symbols"`
	TotalDefinitions         int `json:"total_definitions"`
	TotalUsages              int `json:"total_usages"`
	TotalVariables           int `json:"total_variables"`
	TotalVariableNames       int `json:"total_variable_names"`
	TotalVariableAssignments int `json:"total_variable_assignments"`
	TotalVariableUsages      int `json:"total_variable_usages"`
	TotalImports             int `json:"total_imports"`
}

// Index is the inverted index. Maps serialize with sorted keys.
type Index struct {
	SymbolIndex   map[string]*SymbolEntry   `json:"symbol_index"`
	ImportMap     map[string]*ImportEntry   `json:"import_map"`
	VariableIndex map[string]*VariableEntry `json:"variable_index"`
	Statistics    Statistics                `json:"statistics"`
}

// New returns an empty index.
func New() *Index {
	return &Index{
		SymbolIndex:   make(map[string]*SymbolEntry),
		ImportMap:     make(map[string]*ImportEntry),
		VariableIndex: make(map[string]*VariableEntry),
	}
}

// builder carries the qualified-name sets while the index is assembled.
type builder struct {
	idx       *Index
	qualified map[string]map[string]struct{}
}

// Build constructs the index in three passes: imports, then definitions and
// variable touches, then call sites. Files without symbols are skipped.
func Build(files []symbols.FileSymbols, r CallResolver) *Index {
	b := &builder{idx: New(), qualified: make(map[string]map[string]struct{})}

	for _, f := range files {
		if f.Symbols != nil {
			b.addImports(f.Path, f.Symbols.Imports)
		}
	}
	for _, f := range files {
		if f.Symbols != nil {
			b.addDefinitions(f.Path, f.Symbols.Definitions)
			b.addVariables(f.Path, f.Symbols.Variables)
		}
	}
	for _, f := range files {
		if f.Symbols != nil {
			b.addCalls(f.Path, f.Symbols.Calls, r)
		}
	}

	for name, set := range b.qualified {
		names := make([]string, 0, len(set))
		for q := range set {
			names = append(names, q)
		}
		sort.Strings(names)
		b.idx.SymbolIndex[name].QualifiedNames = names
	}
	b.idx.Statistics = b.idx.ComputeStatistics()
	return b.idx
}

func (b *builder) addImports(file string, imports []symbols.ImportRef) {
	for _, imp := range imports {
		leaf := imp.LeafName()
		entry, ok := b.idx.ImportMap[leaf]
		if !ok {
			entry = &ImportEntry{FromModules: []ImportOrigin{}, Aliases: map[string]string{}}
			b.idx.ImportMap[leaf] = entry
		}
		entry.FromModules = append(entry.FromModules, ImportOrigin{
			Module: imp.Origin(),
			File:   file,
			Line:   imp.Line,
			AsName: imp.AsName,
		})
		if imp.AsName != "" {
			entry.Aliases[imp.AsName] = leaf
		}
	}
}

func (b *builder) entry(name string) *SymbolEntry {
	e, ok := b.idx.SymbolIndex[name]
	if !ok {
		e = &SymbolEntry{Definitions: []Definition{}, Usages: []Usage{}, QualifiedNames: []string{}}
		b.idx.SymbolIndex[name] = e
	}
	return e
}

func (b *builder) addDefinitions(file string, defs []symbols.Definition) {
	for _, d := range defs {
		e := b.entry(d.Name)
		e.Definitions = append(e.Definitions, Definition{Definition: d, File: file})
		set, ok := b.qualified[d.Name]
		if !ok {
			set = make(map[string]struct{})
			b.qualified[d.Name] = set
		}
		set[d.QualifiedName] = struct{}{}
	}
}

func (b *builder) addVariables(file string, touches []symbols.VariableTouch) {
	for _, v := range touches {
		e, ok := b.idx.VariableIndex[v.Name]
		if !ok {
			e = &VariableEntry{Assignments: []Touch{}, Usages: []Touch{}}
			b.idx.VariableIndex[v.Name] = e
		}
		t := Touch{VariableTouch: v, File: file}
		if v.Mode == symbols.TouchAssignment {
			e.Assignments = append(e.Assignments, t)
		} else {
			e.Usages = append(e.Usages, t)
		}
	}
}

func (b *builder) addCalls(file string, calls []symbols.CallSite, r CallResolver) {
	for _, c := range calls {
		u := Usage{CallSite: c, File: file}
		if r != nil {
			if t, ok := r.ResolveCall(c); ok {
				u.Resolved = true
				u.ResolvedTo = t.QualifiedName
				u.TargetFile = t.File
				u.TargetLine = t.Line
			}
		}
		for _, key := range UsageKeys(c) {
			e := b.entry(key)
			e.Usages = append(e.Usages, u)
		}
	}
}

// UsageKeys returns the distinct keys a call is indexed under: its callee
// text, its qualified guess and the last dotted segment of the callee text.
// A self.run() call inside Job is therefore found under self.run, Job.run and run.
func UsageKeys(c symbols.CallSite) []string {
	keys := make([]string, 0, 3)
	add := func(k string) {
		if k == "" {
			return
		}
		for _, have := range keys {
			if have == k {
				return
			}
		}
		keys = append(keys, k)
	}
	add(c.Name)
	add(c.QualifiedCall)
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		add(c.Name[i+1:])
	}
	return keys
}

// ComputeStatistics derives the statistics from the maps.
func (idx *Index) ComputeStatistics() Statistics {
	s := Statistics{
		TotalSymbols:       len(idx.SymbolIndex),
		TotalVariableNames: len(idx.VariableIndex),
		TotalImports:       len(idx.ImportMap),
	}
	for _, e := range idx.SymbolIndex {
		s.TotalDefinitions += len(e.Definitions)
		s.TotalUsages += len(e.Usages)
	}
	for _, e := range idx.VariableIndex {
		s.TotalVariableAssignments += len(e.Assignments)
		s.TotalVariableUsages += len(e.Usages)
	}
	s.TotalVariables = s.TotalVariableAssignments + s.TotalVariableUsages
	return s
}

// Validate checks that the stored statistics equal the summed contents.
func (idx *Index) Validate() error {
	want := idx.ComputeStatistics()
	if idx.Statistics != want {
		return fmt.Errorf("%w: stored %+v, computed %+v", ErrStatistics, idx.Statistics, want)
	}
	return nil
}

// SymbolNames returns the symbol_index keys in sorted order.
func (idx *Index) SymbolNames() []string {
	names := make([]string, 0, len(idx.SymbolIndex))
	for name := range idx.SymbolIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
