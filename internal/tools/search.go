package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/store"
)

func (s *Server) handleSearchDefinitions(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	p, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	limit := getIntArg(args, "limit", 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := max(getIntArg(args, "offset", 0), 0)

	out, err := s.store.SearchDefinitions(store.SearchParams{
		Project:     p.Name,
		NamePattern: getStringArg(args, "name_pattern"),
		Kind:        getStringArg(args, "kind"),
		FilePattern: getStringArg(args, "file_pattern"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return errResult(err.Error()), nil
	}

	type definitionInfo struct {
		Name          string `json:"name"`
		QualifiedName string `json:"qualified_name"`
		Kind          string `json:"type"`
		File          string `json:"file"`
		Line          int    `json:"line"`
		IsMethod      bool   `json:"is_method"`
		IsAsync       bool   `json:"is_async,omitempty"`
		Docstring     string `json:"docstring,omitempty"`
	}
	results := make([]definitionInfo, 0, len(out.Results))
	for _, d := range out.Results {
		results = append(results, definitionInfo{
			Name:          d.Name,
			QualifiedName: d.QualifiedName,
			Kind:          d.Kind,
			File:          d.FilePath,
			Line:          d.Line,
			IsMethod:      d.IsMethod,
			IsAsync:       d.IsAsync,
			Docstring:     d.Docstring,
		})
	}
	return jsonResult(map[string]any{
		"project":  p.Name,
		"results":  results,
		"total":    out.Total,
		"has_more": offset+len(results) < out.Total,
	}), nil
}
