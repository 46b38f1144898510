package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/codeindex/internal/pipeline"
	"github.com/DeusData/codeindex/internal/store"
)

type handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "demo")
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return dir
}

var demoRepo = map[string]string{
	"app/jobs.py": `from app.util import helper

RETRIES = 3


class Job:
    def run(self):
        helper()
        return RETRIES

    def retry(self):
        self.run()


def main():
    Job().run()
`,
	"app/util.py": "def helper():\n    total = 1\n    return total\n",
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewServer(st, pipeline.DefaultOptions(), "test")
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := h(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: raw},
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func callJSON(t *testing.T, h handler, args map[string]any) map[string]any {
	t.Helper()
	text, isErr := call(t, h, args)
	require.False(t, isErr, text)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func indexedServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := newTestServer(t)
	repo := writeRepo(t, demoRepo)
	out := callJSON(t, srv.handleIndexRepository, map[string]any{"repo_path": repo})
	require.Equal(t, pipeline.ProjectNameFromPath(repo), out["project"])
	require.EqualValues(t, 2, out["files"])
	return srv, repo
}

func TestIndexRepositoryRequiresPath(t *testing.T) {
	srv := newTestServer(t)
	text, isErr := call(t, srv.handleIndexRepository, map[string]any{})
	require.True(t, isErr)
	require.Contains(t, text, "repo_path is required")
}

func TestQueriesNeedAProject(t *testing.T) {
	srv := newTestServer(t)
	text, isErr := call(t, srv.handleFindAllUsages, map[string]any{"symbol": "helper"})
	require.True(t, isErr)
	require.Contains(t, text, "no projects indexed")
}

func TestFindAllUsages(t *testing.T) {
	srv, _ := indexedServer(t)

	out := callJSON(t, srv.handleFindAllUsages, map[string]any{"symbol": "helper"})
	require.Equal(t, true, out["found"])
	res := out["result"].(map[string]any)
	require.EqualValues(t, 1, res["total_definitions"])
	require.EqualValues(t, 1, res["total_usages"])
	usage := res["usages"].([]any)[0].(map[string]any)
	require.Equal(t, "app/jobs.py", usage["file"])
	require.Equal(t, true, usage["resolved"])
	require.Equal(t, "app/util.py", usage["target_file"])

	out = callJSON(t, srv.handleFindAllUsages, map[string]any{"symbol": "nope"})
	require.Equal(t, false, out["found"])
}

func TestFindByQualifiedName(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleFindByQualifiedName, map[string]any{"qualified_name": "Job.run"})
	matches := out["matches"].([]any)
	require.Len(t, matches, 1)
	require.Equal(t, "run", matches[0].(map[string]any)["symbol"])

	out = callJSON(t, srv.handleFindByQualifiedName, map[string]any{"qualified_name": "Missing.x"})
	require.Empty(t, out["matches"])
}

func TestFindVariableUsages(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleFindVariableUsages, map[string]any{"variable": "total"})
	require.Equal(t, true, out["found"])
	res := out["result"].(map[string]any)
	require.EqualValues(t, 1, res["total_assignments"])
	require.EqualValues(t, 1, res["total_usages"])
}

func TestSearchSymbols(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleSearchSymbols, map[string]any{"query": "JOB", "kind": "class"})
	matches := out["matches"].([]any)
	require.Len(t, matches, 1)
	require.Equal(t, "Job", matches[0].(map[string]any)["symbol"])

	text, isErr := call(t, srv.handleSearchSymbols, map[string]any{"query": "x", "kind": "module"})
	require.True(t, isErr)
	require.Contains(t, text, "unknown kind")
}

func TestSearchDefinitions(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleSearchDefinitions, map[string]any{"file_pattern": "app/jobs.py", "limit": 2})
	require.EqualValues(t, 4, out["total"])
	require.Equal(t, true, out["has_more"])
	results := out["results"].([]any)
	require.Len(t, results, 2)
	require.Equal(t, "Job", results[0].(map[string]any)["name"])
}

func TestTraceRelations(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleTraceRelations, map[string]any{"qualified_name": "helper", "depth": 1})
	traces := out["traces"].([]any)
	require.Len(t, traces, 1)
	tr := traces[0].(map[string]any)
	require.Equal(t, "function", tr["root"].(map[string]any)["type"])
	visited := tr["visited"].([]any)
	require.Len(t, visited, 1)
	require.Equal(t, "call", visited[0].(map[string]any)["type"])
	require.Equal(t, "app/jobs.py", visited[0].(map[string]any)["file"])

	out = callJSON(t, srv.handleTraceRelations, map[string]any{
		"qualified_name": "Job.run",
		"direction":      "outbound",
		"edge_types":     []string{"defined_in", "contained_in"},
		"depth":          5,
	})
	visited = out["traces"].([]any)[0].(map[string]any)["visited"].([]any)
	require.Equal(t, "file", visited[0].(map[string]any)["type"])

	text, isErr := call(t, srv.handleTraceRelations, map[string]any{"qualified_name": "Nope"})
	require.True(t, isErr)
	require.Contains(t, text, "definition not found")

	text, isErr = call(t, srv.handleTraceRelations, map[string]any{})
	require.True(t, isErr)
	require.Contains(t, text, "qualified_name or file_path")
}

func TestTraceRelationsFromFile(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleTraceRelations, map[string]any{
		"file_path":  "app/util.py",
		"edge_types": []string{"all"},
		"depth":      1,
	})
	traces := out["traces"].([]any)
	require.Len(t, traces, 1)
	tr := traces[0].(map[string]any)
	require.Equal(t, "app/util.py", tr["root"].(map[string]any)["identifier"])
	types := map[string]bool{}
	for _, v := range tr["visited"].([]any) {
		types[v.(map[string]any)["type"].(string)] = true
	}
	require.True(t, types["function"], "helper is defined_in the file")
	require.True(t, types["import"], "jobs.py imports from the file")

	text, isErr := call(t, srv.handleTraceRelations, map[string]any{"file_path": "app/missing.py"})
	require.True(t, isErr)
	require.Contains(t, text, "file not found")
}

func TestGetCodeSnippet(t *testing.T) {
	srv, _ := indexedServer(t)
	out := callJSON(t, srv.handleGetCodeSnippet, map[string]any{"qualified_name": "Job.run"})
	snippets := out["snippets"].([]any)
	require.Len(t, snippets, 1)
	sn := snippets[0].(map[string]any)
	require.EqualValues(t, 7, sn["start_line"])
	require.EqualValues(t, 9, sn["end_line"])
	require.Contains(t, sn["source"], "return RETRIES")
	require.NotContains(t, sn["source"], "def retry")
}

func TestProjectsLifecycle(t *testing.T) {
	srv, repo := indexedServer(t)

	list, isErr := call(t, srv.handleListProjects, nil)
	require.False(t, isErr)
	var projects []map[string]any
	require.NoError(t, json.Unmarshal([]byte(list), &projects))
	require.Len(t, projects, 1)
	require.Equal(t, repo, projects[0]["root_path"])

	stats := callJSON(t, srv.handleGetIndexStats, map[string]any{})
	require.EqualValues(t, 2, stats["repository"].(map[string]any)["total_files"])
	require.NotNil(t, stats["inverted_index"])

	// A second project makes the project argument mandatory.
	other := writeRepo(t, map[string]string{"x.py": "def x():\n    pass\n"})
	callJSON(t, srv.handleIndexRepository, map[string]any{"repo_path": other, "project": "other"})
	text, isErr := call(t, srv.handleFindAllUsages, map[string]any{"symbol": "x"})
	require.True(t, isErr)
	require.Contains(t, text, "pass project")
	out := callJSON(t, srv.handleFindAllUsages, map[string]any{"symbol": "x", "project": "other"})
	require.Equal(t, "other", out["project"])

	callJSON(t, srv.handleDeleteProject, map[string]any{"project": "other"})
	text, isErr = call(t, srv.handleDeleteProject, map[string]any{"project": "other"})
	require.True(t, isErr)
	require.Contains(t, text, "project not found")
}

func TestReindexInvalidatesCache(t *testing.T) {
	srv, repo := indexedServer(t)
	out := callJSON(t, srv.handleFindAllUsages, map[string]any{"symbol": "fresh"})
	require.Equal(t, false, out["found"])

	require.NoError(t, os.WriteFile(filepath.Join(repo, "app", "fresh.py"), []byte("def fresh():\n    pass\n"), 0o600))
	callJSON(t, srv.handleIndexRepository, map[string]any{"repo_path": repo})
	out = callJSON(t, srv.handleFindAllUsages, map[string]any{"symbol": "fresh"})
	require.Equal(t, true, out["found"])
}
