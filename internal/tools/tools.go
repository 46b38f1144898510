// Package tools exposes the code index over the Model Context Protocol.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/pipeline"
	"github.com/DeusData/codeindex/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store
	opts  pipeline.Options

	indexMu sync.Mutex // serializes index_repository

	cacheMu sync.Mutex
	indexes map[string]*index.Index
}

// NewServer creates an MCP server with all tools registered. opts are the
// pipeline options used by index_repository.
func NewServer(s *store.Store, opts pipeline.Options, version string) *Server {
	srv := &Server{
		store:   s,
		opts:    opts,
		indexes: make(map[string]*index.Index),
		mcp: mcp.NewServer(
			&mcp.Implementation{Name: "codeindex", Version: version},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

const projectProp = `"project": {
	"type": "string",
	"description": "Indexed project name. May be omitted when only one project is indexed."
}`

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Index a Python repository: discover files, extract definitions, imports, calls and variables, build the code graph and inverted index, and store them for querying. Re-indexing replaces the previous snapshot.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {"type": "string", "description": "Absolute path to the repository root"},
				"project": {"type": "string", "description": "Project name (default: directory name)"}
			},
			"required": ["repo_path"]
		}`),
	}, s.handleIndexRepository)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List indexed projects with their root path, index time and graph size.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete an indexed project and everything stored for it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"project": {"type": "string", "description": "Project to delete"}},
			"required": ["project"]
		}`),
	}, s.handleDeleteProject)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_index_stats",
		Description: "Return repository and inverted index statistics for a project.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {` + projectProp + `}}`),
	}, s.handleGetIndexStats)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_all_usages",
		Description: "Find every definition and call site of a symbol name, with each call's resolution outcome.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {"type": "string", "description": "Symbol name as written at the call site (e.g. 'helper' or 'self.run')"},
				` + projectProp + `
			},
			"required": ["symbol"]
		}`),
	}, s.handleFindAllUsages)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_by_qualified_name",
		Description: "Find definitions whose qualified name matches exactly (e.g. 'Job.run').",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {"type": "string", "description": "Dotted qualified name within its file"},
				` + projectProp + `
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleFindByQualifiedName)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_variable_usages",
		Description: "Find assignments and reads of a variable name across the project.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"variable": {"type": "string", "description": "Variable name"},
				` + projectProp + `
			},
			"required": ["variable"]
		}`),
	}, s.handleFindVariableUsages)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Case-insensitive substring search over indexed symbol names, optionally restricted to functions or classes.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Substring to search for"},
				"kind": {"type": "string", "enum": ["function", "class"], "description": "Only keep definitions of this kind"},
				` + projectProp + `
			},
			"required": ["query"]
		}`),
	}, s.handleSearchSymbols)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_definitions",
		Description: "Paginated search over stored definitions by name glob, kind and file glob.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name_pattern": {"type": "string", "description": "Glob for the name; without wildcards it matches as a substring"},
				"kind": {"type": "string", "enum": ["function", "class"]},
				"file_pattern": {"type": "string", "description": "Glob for the file path (e.g. 'app/*.py')"},
				"limit": {"type": "integer", "description": "Max results (default 50, max 500)"},
				"offset": {"type": "integer", "description": "Results to skip"},
				` + projectProp + `
			}
		}`),
	}, s.handleSearchDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_relations",
		Description: "Walk the code graph from a definition or a file. Inbound over 'calls' lists call sites targeting a definition; outbound over 'defined_in' and 'contained_in' walks up to its file and directories.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {"type": "string", "description": "Qualified name of the start definition"},
				"file_path": {"type": "string", "description": "Start from this file node instead (repository-relative path)"},
				"direction": {"type": "string", "enum": ["inbound", "outbound"], "description": "Default inbound"},
				"edge_types": {"type": "array", "items": {"type": "string"}, "description": "Edge types to follow (default ['calls']; ['all'] follows every type)"},
				"depth": {"type": "integer", "description": "Maximum hops (1-5, default 2)"},
				` + projectProp + `
			}
		}`),
	}, s.handleTraceRelations)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_code_snippet",
		Description: "Return the source lines of a definition, read from disk under the project root.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {"type": "string"},
				` + projectProp + `
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleGetCodeSnippet)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

func getStringsArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveProject returns the named project, or the only indexed project
// when name is empty.
func (s *Server) resolveProject(name string) (*store.Project, error) {
	if name != "" {
		return s.store.GetProject(name)
	}
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	switch len(projects) {
	case 0:
		return nil, errors.New("no projects indexed; call index_repository first")
	case 1:
		return projects[0], nil
	}
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	sort.Strings(names)
	return nil, fmt.Errorf("several projects indexed (%s); pass project", strings.Join(names, ", "))
}

// projectIndex loads the inverted index for a project, caching it until
// the project is re-indexed or deleted.
func (s *Server) projectIndex(args map[string]any) (string, *index.Index, error) {
	p, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return "", nil, err
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if idx, ok := s.indexes[p.Name]; ok {
		return p.Name, idx, nil
	}
	idx, err := s.store.LoadIndex(p.Name)
	if err != nil {
		return "", nil, err
	}
	s.indexes[p.Name] = idx
	return p.Name, idx, nil
}

func (s *Server) invalidate(project string) {
	s.cacheMu.Lock()
	delete(s.indexes, project)
	s.cacheMu.Unlock()
}
