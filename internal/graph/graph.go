// Package graph builds the code relationship graph: files, directories,
// definitions, imports and calls as nodes; containment, definition, import
// and call relations as edges.
package graph

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strconv"

	"github.com/DeusData/codeindex/internal/discover"
	"github.com/DeusData/codeindex/internal/fqn"
	"github.com/DeusData/codeindex/internal/resolve"
	"github.com/DeusData/codeindex/internal/symbols"
)

// ErrNodeCollision is returned when a node key is requested again with
// properties that differ from the ones it was created with.
var ErrNodeCollision = errors.New("node collision")

// Node types.
const (
	NodeFile      = "file"
	NodeDirectory = "directory"
	NodeFunction  = string(symbols.KindFunction)
	NodeClass     = string(symbols.KindClass)
	NodeImport    = "import"
	NodeCall      = "call"
)

// Edge types.
const (
	EdgeContainedIn = "contained_in"
	EdgeDefinedIn   = "defined_in"
	EdgeImportedIn  = "imported_in"
	EdgeImportsFrom = "imports_from"
	EdgeCalledIn    = "called_in"
	EdgeCalls       = "calls"
)

// Properties are the attributes attached to a node or edge.
type Properties map[string]any

// Node is one graph vertex, unique per (Type, Identifier).
type Node struct {
	ID         int        `json:"id"`
	Type       string     `json:"type"`
	Identifier string     `json:"identifier"`
	Properties Properties `json:"properties"`
}

// Edge is one directed relation between two node ids.
type Edge struct {
	Source     int        `json:"source"`
	Target     int        `json:"target"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
}

// Metadata summarizes a graph. Type lists are sorted.
type Metadata struct {
	TotalNodes int      `json:"total_nodes"`
	TotalEdges int      `json:"total_edges"`
	NodeTypes  []string `json:"node_types"`
	EdgeTypes  []string `json:"edge_types"`
}

// CodeGraph is the finished graph.
type CodeGraph struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

type nodeKey struct {
	typ, identifier string
}

// Builder accumulates nodes and edges. Node ids are dense and assigned in
// creation order.
type Builder struct {
	nodes []Node
	edges []Edge
	ids   map[nodeKey]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{ids: make(map[nodeKey]int)}
}

// Node returns the id of the (typ, identifier) node, creating it if needed.
// A nil props is a reference: an existing node is returned untouched. A
// non-nil props must equal the stored properties unless the stored node is
// a bare reference, which adopts them; otherwise ErrNodeCollision is returned.
func (b *Builder) Node(typ, identifier string, props Properties) (int, error) {
	key := nodeKey{typ, identifier}
	if id, ok := b.ids[key]; ok {
		if props == nil {
			return id, nil
		}
		existing := b.nodes[id].Properties
		if len(existing) == 0 {
			b.nodes[id].Properties = props
			return id, nil
		}
		if !reflect.DeepEqual(existing, props) {
			return id, fmt.Errorf("%w: %s %q: have %v, got %v", ErrNodeCollision, typ, identifier, existing, props)
		}
		return id, nil
	}
	if props == nil {
		props = Properties{}
	}
	id := len(b.nodes)
	b.ids[key] = id
	b.nodes = append(b.nodes, Node{ID: id, Type: typ, Identifier: identifier, Properties: props})
	return id, nil
}

// Lookup returns the id of an existing node.
func (b *Builder) Lookup(typ, identifier string) (int, bool) {
	id, ok := b.ids[nodeKey{typ, identifier}]
	return id, ok
}

// Edge appends a relation. Edges are not deduplicated.
func (b *Builder) Edge(source, target int, typ string, props Properties) {
	if props == nil {
		props = Properties{}
	}
	b.edges = append(b.edges, Edge{Source: source, Target: target, Type: typ, Properties: props})
}

// Graph returns the finished graph with its metadata.
func (b *Builder) Graph() *CodeGraph {
	nodeTypes := map[string]bool{}
	for _, n := range b.nodes {
		nodeTypes[n.Type] = true
	}
	edgeTypes := map[string]bool{}
	for _, e := range b.edges {
		edgeTypes[e.Type] = true
	}
	nodes, edges := b.nodes, b.edges
	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	return &CodeGraph{
		Nodes: nodes,
		Edges: edges,
		Metadata: Metadata{
			TotalNodes: len(nodes),
			TotalEdges: len(edges),
			NodeTypes:  sortedKeys(nodeTypes),
			EdgeTypes:  sortedKeys(edgeTypes),
		},
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefinitionID is the identifier of a definition node.
func DefinitionID(file string, d symbols.Definition) string {
	return file + "::" + d.QualifiedName + "::" + strconv.Itoa(d.Line)
}

// ImportID is the identifier of an import node.
func ImportID(file string, imp symbols.ImportRef) string {
	name := imp.Name
	if imp.AsName != "" {
		name += " as " + imp.AsName
	}
	return file + "::" + name + "::" + strconv.Itoa(imp.Line)
}

// CallID is the identifier of a call node.
func CallID(file string, c symbols.CallSite) string {
	return file + "::" + c.Name + "::" + strconv.Itoa(c.Line) + ":" + strconv.Itoa(c.ColOffset)
}

// Build constructs the graph. infos and files must describe the same files
// in the same order; files[i].Symbols is nil for files without symbols.
// r must have been built from the same files slice.
//
// Definitions of every file get their nodes before any import or call is
// linked, so a call always points at a fully described definition node.
func Build(infos []discover.FileInfo, files []symbols.FileSymbols, r *resolve.Resolver) (*CodeGraph, error) {
	if len(infos) != len(files) {
		return nil, fmt.Errorf("graph: %d file infos for %d symbol sets", len(infos), len(files))
	}
	b := NewBuilder()
	fileIDs := make([]int, len(infos))
	defIDs := make([][]int, len(files))

	for i, info := range infos {
		if info.RelPath != files[i].Path {
			return nil, fmt.Errorf("graph: file %d is %q in infos but %q in symbols", i, info.RelPath, files[i].Path)
		}
		id, err := b.addFile(info)
		if err != nil {
			return nil, err
		}
		fileIDs[i] = id
		if set := files[i].Symbols; set != nil {
			defIDs[i], err = b.addDefinitions(info.RelPath, id, set.Definitions)
			if err != nil {
				return nil, err
			}
		}
	}

	for i, f := range files {
		if f.Symbols == nil {
			continue
		}
		if err := b.addImports(f.Path, fileIDs[i], f.Symbols.Imports, r); err != nil {
			return nil, err
		}
		if err := b.addCalls(f.Path, fileIDs[i], f.Symbols.Calls, r, defIDs); err != nil {
			return nil, err
		}
	}
	return b.Graph(), nil
}

// addFile creates the file node, its directory chain and one contained_in
// edge to the immediate parent directory.
func (b *Builder) addFile(info discover.FileInfo) (int, error) {
	fileID, err := b.Node(NodeFile, info.RelPath, Properties{
		"name":       info.Name,
		"language":   string(info.Language),
		"extension":  info.Extension,
		"directory":  info.Directory,
		"size_bytes": info.Size,
	})
	if err != nil {
		return 0, err
	}
	if info.Directory == discover.RootDirectory {
		return fileID, nil
	}
	parentID := -1
	for dir := info.Directory; dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		id, err := b.Node(NodeDirectory, dir, Properties{"name": path.Base(dir), "path": dir})
		if err != nil {
			return 0, err
		}
		if parentID < 0 {
			parentID = id
		}
	}
	if parentID >= 0 {
		b.Edge(fileID, parentID, EdgeContainedIn, nil)
	}
	return fileID, nil
}

func (b *Builder) addDefinitions(file string, fileID int, defs []symbols.Definition) ([]int, error) {
	module := fqn.ModuleName(file)
	ids := make([]int, len(defs))
	for i, d := range defs {
		id, err := b.Node(string(d.Kind), DefinitionID(file, d), Properties{
			"name":           d.Name,
			"qualified_name": d.QualifiedName,
			"fqn":            fqn.Qualify(module, d.QualifiedName),
			"file":           file,
			"line":           d.Line,
		})
		if err != nil {
			return nil, err
		}
		ids[i] = id
		b.Edge(id, fileID, EdgeDefinedIn, Properties{"line": d.Line})
	}
	return ids, nil
}

func (b *Builder) addImports(file string, fileID int, imports []symbols.ImportRef, r *resolve.Resolver) error {
	for _, imp := range imports {
		props := Properties{"name": imp.Name, "file": file, "line": imp.Line}
		if imp.AsName != "" {
			props["as_name"] = imp.AsName
		}
		id, err := b.Node(NodeImport, ImportID(file, imp), props)
		if err != nil {
			return err
		}
		b.Edge(id, fileID, EdgeImportedIn, Properties{"line": imp.Line})

		target, ok := r.ResolveImport(imp)
		if !ok {
			continue
		}
		targetID, ok := b.Lookup(NodeFile, target)
		if !ok {
			continue
		}
		b.Edge(id, targetID, EdgeImportsFrom, nil)
	}
	return nil
}

func (b *Builder) addCalls(file string, fileID int, calls []symbols.CallSite, r *resolve.Resolver, defIDs [][]int) error {
	for _, c := range calls {
		id, err := b.Node(NodeCall, CallID(file, c), Properties{
			"name":       c.Name,
			"file":       file,
			"line":       c.Line,
			"col_offset": c.ColOffset,
		})
		if err != nil {
			return err
		}
		b.Edge(id, fileID, EdgeCalledIn, Properties{"line": c.Line})

		t, ok := r.ResolveCall(c)
		if !ok || t.FileIndex >= len(defIDs) || t.DefIndex >= len(defIDs[t.FileIndex]) {
			continue
		}
		b.Edge(id, defIDs[t.FileIndex][t.DefIndex], EdgeCalls, nil)
	}
	return nil
}
