package tools

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/pipeline"
)

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		return errResult("repo_path is required"), nil
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}
	project := getStringArg(args, "project")
	if project == "" {
		project = pipeline.ProjectNameFromPath(absPath)
	}

	snap, err := s.Reindex(ctx, project, absPath)
	if err != nil {
		return errResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"project":      project,
		"files":        snap.Statistics.TotalFiles,
		"nodes":        snap.Statistics.GraphNodes,
		"edges":        snap.Statistics.GraphEdges,
		"symbols":      snap.Statistics.IndexedSymbols,
		"parse_errors": snap.Metadata.ParseErrors,
		"indexed_at":   snap.Metadata.IndexedAt,
	}), nil
}

// Reindex runs the pipeline over rootPath and replaces the stored snapshot
// of project. Calls are serialized.
func (s *Server) Reindex(ctx context.Context, project, rootPath string) (*pipeline.Snapshot, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	snap, err := pipeline.Run(ctx, rootPath, s.opts)
	if err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	if err := s.store.SaveSnapshot(project, snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	s.invalidate(project)
	slog.Info("tools.index", "project", project, "files", snap.Statistics.TotalFiles,
		"nodes", snap.Statistics.GraphNodes, "parse_errors", len(snap.Metadata.ParseErrors))
	return snap, nil
}
