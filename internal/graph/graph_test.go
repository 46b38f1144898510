package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/codeindex/internal/discover"
	"github.com/DeusData/codeindex/internal/resolve"
	"github.com/DeusData/codeindex/internal/symbols"
)

type fixtureFile struct {
	path, src string
}

func buildGraph(t *testing.T, fixtures ...fixtureFile) *CodeGraph {
	t.Helper()
	infos := make([]discover.FileInfo, len(fixtures))
	files := make([]symbols.FileSymbols, len(fixtures))
	for i, f := range fixtures {
		infos[i] = discover.NewFileInfo("/repo/"+f.path, f.path, int64(len(f.src)))
		files[i] = symbols.FileSymbols{Path: f.path}
		if infos[i].Language == "python" {
			set, err := symbols.ExtractSource([]byte(f.src), symbols.DefaultOptions())
			if err == nil {
				files[i].Symbols = set
			}
		}
	}
	g, err := Build(infos, files, resolve.New(files))
	require.NoError(t, err)
	return g
}

func nodesOfType(g *CodeGraph, typ string) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func edgesOfType(g *CodeGraph, typ string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestBuilderNodeDedup(t *testing.T) {
	b := NewBuilder()
	a, err := b.Node(NodeFile, "a.py", Properties{"name": "a.py"})
	require.NoError(t, err)
	again, err := b.Node(NodeFile, "a.py", Properties{"name": "a.py"})
	require.NoError(t, err)
	require.Equal(t, a, again)

	ref, err := b.Node(NodeFile, "a.py", nil)
	require.NoError(t, err)
	require.Equal(t, a, ref)

	other, err := b.Node(NodeDirectory, "a.py", nil)
	require.NoError(t, err)
	require.NotEqual(t, a, other, "type is part of the key")

	_, err = b.Node(NodeFile, "a.py", Properties{"name": "different"})
	require.ErrorIs(t, err, ErrNodeCollision)

	// a bare reference adopts the first full description
	bare, err := b.Node(NodeClass, "x::X::1", nil)
	require.NoError(t, err)
	full, err := b.Node(NodeClass, "x::X::1", Properties{"name": "X"})
	require.NoError(t, err)
	require.Equal(t, bare, full)
	require.Equal(t, "X", b.Graph().Nodes[full].Properties["name"])
}

func TestDirectoryContainment(t *testing.T) {
	g := buildGraph(t,
		fixtureFile{"a/b/c/deep.py", "x = 1\n"},
		fixtureFile{"a/b/other.md", "# doc\n"},
		fixtureFile{"top.py", ""},
	)

	dirs := nodesOfType(g, NodeDirectory)
	var paths []string
	for _, d := range dirs {
		paths = append(paths, d.Identifier)
	}
	require.ElementsMatch(t, []string{"a", "a/b", "a/b/c"}, paths)

	contained := edgesOfType(g, EdgeContainedIn)
	require.Len(t, contained, 2, "root-level files have no parent directory node")
	for _, e := range contained {
		src := g.Nodes[e.Source]
		dst := g.Nodes[e.Target]
		require.Equal(t, src.Properties["directory"], dst.Identifier, "file links only to its immediate parent")
	}
}

func TestDefinitionsImportsAndCalls(t *testing.T) {
	g := buildGraph(t,
		fixtureFile{"app/main.py", "from app.util import helper\nimport os\n\ndef main():\n    helper()\n    later()\n    os.getcwd()\n"},
		fixtureFile{"app/util.py", "def helper():\n    pass\n"},
		fixtureFile{"app/late.py", "def later():\n    pass\n"},
	)

	funcs := nodesOfType(g, NodeFunction)
	require.Len(t, funcs, 3)
	require.Len(t, edgesOfType(g, EdgeDefinedIn), 3)

	imports := nodesOfType(g, NodeImport)
	require.Len(t, imports, 2)
	from := edgesOfType(g, EdgeImportsFrom)
	require.Len(t, from, 1, "os is not part of the repository")
	require.Equal(t, "app/util.py", g.Nodes[from[0].Target].Identifier)

	calls := nodesOfType(g, NodeCall)
	require.Len(t, calls, 3)
	require.Len(t, edgesOfType(g, EdgeCalledIn), 3)

	targets := map[string]string{}
	for _, e := range edgesOfType(g, EdgeCalls) {
		targets[g.Nodes[e.Source].Properties["name"].(string)] = g.Nodes[e.Target].Properties["file"].(string)
	}
	require.Equal(t, map[string]string{"helper": "app/util.py", "later": "app/late.py"}, targets)

	late := nodesOfType(g, NodeFunction)[2]
	require.Equal(t, "app.late.later", late.Properties["fqn"], "definition nodes defined after their callers keep full properties")
}

func TestNodeDedupInvariant(t *testing.T) {
	g := buildGraph(t,
		fixtureFile{"pkg/a.py", "import pkg.b\nclass A:\n    def m(self):\n        self.m()\n        f(f(1))\n"},
		fixtureFile{"pkg/b.py", "def f(x):\n    return x\n"},
	)
	seen := map[nodeKey]bool{}
	for i, n := range g.Nodes {
		require.Equal(t, i, n.ID)
		k := nodeKey{n.Type, n.Identifier}
		require.False(t, seen[k], "duplicate node %v", k)
		seen[k] = true
	}
	require.Equal(t, len(g.Nodes), g.Metadata.TotalNodes)
	require.Equal(t, len(g.Edges), g.Metadata.TotalEdges)
	require.Len(t, nodesOfType(g, NodeCall), 3, "calls on one line stay distinct by column")
	require.IsIncreasing(t, g.Metadata.NodeTypes)
}

func TestBrokenFileIsOnlyAFileNode(t *testing.T) {
	g := buildGraph(t, fixtureFile{"broken.py", "def broken(:\n"})
	require.Len(t, g.Nodes, 1)
	require.Equal(t, NodeFile, g.Nodes[0].Type)
	require.Empty(t, g.Edges)
}

func TestEmptyGraph(t *testing.T) {
	g, err := Build(nil, nil, resolve.New(nil))
	require.NoError(t, err)
	require.Empty(t, g.Nodes)
	require.Empty(t, g.Edges)
	require.NotNil(t, g.Metadata.NodeTypes)
}

func TestBuildRejectsMisalignedInput(t *testing.T) {
	infos := []discover.FileInfo{discover.NewFileInfo("/r/a.py", "a.py", 0)}
	_, err := Build(infos, []symbols.FileSymbols{{Path: "b.py"}}, resolve.New(nil))
	require.Error(t, err)
	_, err = Build(infos, nil, resolve.New(nil))
	require.Error(t, err)
}
