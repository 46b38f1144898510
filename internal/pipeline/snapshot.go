package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeusData/codeindex/internal/discover"
	"github.com/DeusData/codeindex/internal/graph"
	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/lang"
	"github.com/DeusData/codeindex/internal/symbols"
)

// FileEntry is one file of the snapshot. Symbols is null for files that
// were not parsed or failed to parse.
type FileEntry struct {
	discover.FileInfo
	Hash    string             `json:"hash,omitempty"`
	Symbols *symbols.SymbolSet `json:"symbols"`
}

// ParseError records a file whose extraction failed.
type ParseError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Statistics summarize a snapshot.
type Statistics struct {
	TotalFiles         int            `json:"total_files"`
	TotalDirectories   int            `json:"total_directories"`
	TotalSizeBytes     int64          `json:"total_size_bytes"`
	Languages          map[string]int `json:"languages"`
	ByExtension        map[string]int `json:"by_extension"`
	TotalPythonSymbols int            `json:"total_python_symbols"`
	GraphNodes         int            `json:"graph_nodes"`
	GraphEdges         int            `json:"graph_edges"`
	IndexedSymbols     int            `json:"indexed_symbols"`
	IndexedDefinitions int            `json:"indexed_definitions"`
	IndexedUsages      int            `json:"indexed_usages"`
	IndexedVariables   int            `json:"indexed_variables"`
	IndexedImports     int            `json:"indexed_imports"`
}

// Metadata describes the run that produced a snapshot.
type Metadata struct {
	RepositoryIdentifier   string       `json:"repository_identifier"`
	RootPath               string       `json:"root_path"`
	IndexedAt              string       `json:"indexed_at"`
	IndexVersion           string       `json:"index_version"`
	IncludesDocstrings     bool         `json:"includes_docstrings"`
	IncludesFunctionBodies bool         `json:"includes_function_bodies"`
	ParseErrors            []ParseError `json:"parse_errors"`
}

// Snapshot is the complete result of one indexing run.
type Snapshot struct {
	Files       []FileEntry        `json:"files"`
	Directories []discover.DirInfo `json:"directories"`
	Tree        map[string]any     `json:"tree"`
	Statistics  Statistics         `json:"statistics"`
	Graph       *graph.CodeGraph   `json:"graph"`
	Index       *index.Index       `json:"inverted_index"`
	Metadata    Metadata           `json:"metadata"`
}

func (p *Pipeline) buildSnapshot(res *discover.Result, entries []FileEntry, g *graph.CodeGraph, idx *index.Index, parseErrors []ParseError) *Snapshot {
	dirs := res.Directories
	if dirs == nil {
		dirs = []discover.DirInfo{}
	}
	if entries == nil {
		entries = []FileEntry{}
	}
	identifier := p.opts.Identifier
	if identifier == "" {
		identifier = RepositoryIdentifier(p.RepoPath)
	}
	snap := &Snapshot{
		Files:       entries,
		Directories: dirs,
		Tree:        BuildTree(entries, dirs),
		Graph:       g,
		Index:       idx,
		Metadata: Metadata{
			RepositoryIdentifier:   identifier,
			RootPath:               p.RepoPath,
			IndexedAt:              time.Now().UTC().Format(time.RFC3339),
			IndexVersion:           p.opts.IndexVersion,
			IncludesDocstrings:     p.opts.IncludeDocstrings,
			IncludesFunctionBodies: p.opts.IncludeBody,
			ParseErrors:            parseErrors,
		},
	}
	snap.Statistics = computeStatistics(res, entries, g, idx)
	return snap
}

func computeStatistics(res *discover.Result, entries []FileEntry, g *graph.CodeGraph, idx *index.Index) Statistics {
	s := Statistics{
		TotalFiles:       len(entries),
		TotalDirectories: len(res.Directories),
		TotalSizeBytes:   res.TotalSize(),
		Languages:        map[string]int{},
		ByExtension:      map[string]int{},
	}
	for _, e := range entries {
		s.Languages[string(e.Language)]++
		s.ByExtension[e.Extension]++
		if lang.Parseable(e.Language) {
			s.TotalPythonSymbols += e.Symbols.Total()
		}
	}
	if g != nil {
		s.GraphNodes = len(g.Nodes)
		s.GraphEdges = len(g.Edges)
	}
	if idx != nil {
		s.IndexedSymbols = idx.Statistics.TotalSymbols
		s.IndexedDefinitions = idx.Statistics.TotalDefinitions
		s.IndexedUsages = idx.Statistics.TotalUsages
		s.IndexedVariables = idx.Statistics.TotalVariables
		s.IndexedImports = idx.Statistics.TotalImports
	}
	return s
}

// BuildTree nests files and directories by path component. File leaves
// describe the file; directory maps carry "_type": "directory".
func BuildTree(entries []FileEntry, dirs []discover.DirInfo) map[string]any {
	tree := map[string]any{}
	descend := func(parts []string) map[string]any {
		cur := tree
		for _, part := range parts {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
		return cur
	}
	for _, e := range entries {
		parts := strings.Split(e.RelPath, "/")
		parent := descend(parts[:len(parts)-1])
		parent[parts[len(parts)-1]] = map[string]any{
			"type":        "file",
			"size":        e.Size,
			"language":    string(e.Language),
			"extension":   e.Extension,
			"has_symbols": e.Symbols != nil,
		}
	}
	for _, d := range dirs {
		descend(strings.Split(d.Path, "/"))["_type"] = "directory"
	}
	return tree
}

// WriteJSON writes the snapshot as indented JSON, creating parent directories.
func WriteJSON(path string, snap *Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadJSON loads a snapshot written by WriteJSON.
func ReadJSON(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if snap.Index == nil {
		snap.Index = index.New()
	}
	return &snap, nil
}
