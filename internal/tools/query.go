package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/query"
	"github.com/DeusData/codeindex/internal/symbols"
)

func (s *Server) handleFindAllUsages(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	symbol := getStringArg(args, "symbol")
	if symbol == "" {
		return errResult("symbol is required"), nil
	}
	project, idx, err := s.projectIndex(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	res, found := query.FindAllUsages(idx, symbol)
	return jsonResult(map[string]any{"project": project, "found": found, "result": res}), nil
}

func (s *Server) handleFindByQualifiedName(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}
	project, idx, err := s.projectIndex(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	matches := query.FindByQualifiedName(idx, qn)
	if matches == nil {
		matches = []query.QualifiedMatch{}
	}
	return jsonResult(map[string]any{"project": project, "matches": matches}), nil
}

func (s *Server) handleFindVariableUsages(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "variable")
	if name == "" {
		return errResult("variable is required"), nil
	}
	project, idx, err := s.projectIndex(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	res, found := query.FindVariableUsages(idx, name)
	return jsonResult(map[string]any{"project": project, "found": found, "result": res}), nil
}

func (s *Server) handleSearchSymbols(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	q := getStringArg(args, "query")
	if q == "" {
		return errResult("query is required"), nil
	}
	kind := symbols.Kind(getStringArg(args, "kind"))
	if kind != "" && kind != symbols.KindFunction && kind != symbols.KindClass {
		return errResult(fmt.Sprintf("unknown kind %q", kind)), nil
	}
	project, idx, err := s.projectIndex(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	matches := query.SearchSymbols(idx, q, kind)
	if matches == nil {
		matches = []query.SearchMatch{}
	}
	return jsonResult(map[string]any{"project": project, "matches": matches, "total": len(matches)}), nil
}
