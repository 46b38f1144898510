package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/store"
)

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err)), nil
	}

	type projectInfo struct {
		Name         string `json:"name"`
		Identifier   string `json:"repository_identifier"`
		RootPath     string `json:"root_path"`
		IndexedAt    string `json:"indexed_at"`
		IndexVersion string `json:"index_version"`
		Nodes        int    `json:"nodes"`
		Edges        int    `json:"edges"`
	}

	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		nc, _ := s.store.CountNodes(p.Name)
		ec, _ := s.store.CountEdges(p.Name)
		result = append(result, projectInfo{
			Name:         p.Name,
			Identifier:   p.Identifier,
			RootPath:     p.RootPath,
			IndexedAt:    p.IndexedAt,
			IndexVersion: p.IndexVersion,
			Nodes:        nc,
			Edges:        ec,
		})
	}
	return jsonResult(result), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "project")
	if name == "" {
		return errResult("project is required"), nil
	}
	if _, err := s.store.GetProject(name); errors.Is(err, store.ErrProjectNotFound) {
		return errResult(fmt.Sprintf("project not found: %s", name)), nil
	}
	if err := s.store.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}
	s.invalidate(name)
	return jsonResult(map[string]any{"deleted": name, "status": "ok"}), nil
}

func (s *Server) handleGetIndexStats(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	p, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	stats, err := s.store.LoadStatistics(p.Name)
	if err != nil {
		return errResult(err.Error()), nil
	}
	_, idx, err := s.projectIndex(map[string]any{"project": p.Name})
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"project":        p.Name,
		"indexed_at":     p.IndexedAt,
		"index_version":  p.IndexVersion,
		"repository":     stats,
		"inverted_index": idx.Statistics,
	}), nil
}
