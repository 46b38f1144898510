// Package query answers read-only lookups over a finished inverted index.
package query

import (
	"strings"

	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/symbols"
)

// UsageResult is the answer to FindAllUsages.
type UsageResult struct {
	Symbol           string             `json:"symbol"`
	Definitions      []index.Definition `json:"definitions"`
	Usages           []index.Usage      `json:"usages"`
	QualifiedNames   []string           `json:"qualified_names"`
	TotalDefinitions int                `json:"total_definitions"`
	TotalUsages      int                `json:"total_usages"`
}

// QualifiedMatch is one definition whose qualified name matched, with the
// usages indexed under its unqualified name.
type QualifiedMatch struct {
	Symbol         string           `json:"symbol"`
	Definition     index.Definition `json:"definition"`
	Usages         []index.Usage    `json:"usages"`
	QualifiedNames []string         `json:"qualified_names"`
}

// VariableResult is the answer to FindVariableUsages.
type VariableResult struct {
	Variable         string        `json:"variable"`
	Assignments      []index.Touch `json:"assignments"`
	Usages           []index.Touch `json:"usages"`
	TotalAssignments int           `json:"total_assignments"`
	TotalUsages      int           `json:"total_usages"`
}

// SearchMatch is one symbol whose name contains the search query.
type SearchMatch struct {
	Symbol         string             `json:"symbol"`
	Definitions    []index.Definition `json:"definitions"`
	UsagesCount    int                `json:"usages_count"`
	QualifiedNames []string           `json:"qualified_names"`
}

// FindAllUsages returns the definitions and usages of a symbol by exact name.
// It reports false when the symbol is not indexed.
func FindAllUsages(idx *index.Index, symbol string) (UsageResult, bool) {
	e, ok := idx.SymbolIndex[symbol]
	if !ok {
		return UsageResult{Symbol: symbol, Definitions: []index.Definition{}, Usages: []index.Usage{}, QualifiedNames: []string{}}, false
	}
	return UsageResult{
		Symbol:           symbol,
		Definitions:      e.Definitions,
		Usages:           e.Usages,
		QualifiedNames:   e.QualifiedNames,
		TotalDefinitions: len(e.Definitions),
		TotalUsages:      len(e.Usages),
	}, true
}

// FindByQualifiedName returns every definition whose qualified name equals
// qualified. Qualified names are not indexed, so this scans all definitions.
// Results follow sorted symbol order, then definition order.
func FindByQualifiedName(idx *index.Index, qualified string) []QualifiedMatch {
	out := []QualifiedMatch{}
	for _, name := range idx.SymbolNames() {
		e := idx.SymbolIndex[name]
		for _, d := range e.Definitions {
			if d.QualifiedName != qualified {
				continue
			}
			out = append(out, QualifiedMatch{
				Symbol:         name,
				Definition:     d,
				Usages:         e.Usages,
				QualifiedNames: e.QualifiedNames,
			})
		}
	}
	return out
}

// FindVariableUsages returns the assignments and reads of a variable name.
// It reports false when the name was never touched.
func FindVariableUsages(idx *index.Index, name string) (VariableResult, bool) {
	e, ok := idx.VariableIndex[name]
	if !ok {
		return VariableResult{Variable: name, Assignments: []index.Touch{}, Usages: []index.Touch{}}, false
	}
	return VariableResult{
		Variable:         name,
		Assignments:      e.Assignments,
		Usages:           e.Usages,
		TotalAssignments: len(e.Assignments),
		TotalUsages:      len(e.Usages),
	}, true
}

// SearchSymbols returns every symbol whose name contains q, case-insensitively.
// With a non-empty kind only symbols having a definition of that kind match,
// and only those definitions are returned. Results are unranked, in sorted
// symbol order.
func SearchSymbols(idx *index.Index, q string, kind symbols.Kind) []SearchMatch {
	needle := strings.ToLower(q)
	out := []SearchMatch{}
	for _, name := range idx.SymbolNames() {
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		e := idx.SymbolIndex[name]
		defs := e.Definitions
		if kind != "" {
			defs = filterKind(defs, kind)
			if len(defs) == 0 {
				continue
			}
		}
		out = append(out, SearchMatch{
			Symbol:         name,
			Definitions:    defs,
			UsagesCount:    len(e.Usages),
			QualifiedNames: e.QualifiedNames,
		})
	}
	return out
}

func filterKind(defs []index.Definition, kind symbols.Kind) []index.Definition {
	out := []index.Definition{}
	for _, d := range defs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
