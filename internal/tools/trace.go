package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codeindex/internal/graph"
	"github.com/DeusData/codeindex/internal/store"
)

// allEdgeTypes in edge_types follows every edge type.
const allEdgeTypes = "all"

type hopInfo struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Hop        int    `json:"hop"`
}

type traceInfo struct {
	Root    hopInfo          `json:"root"`
	Visited []hopInfo        `json:"visited"`
	Edges   []store.EdgeInfo `json:"edges"`
}

func (s *Server) handleTraceRelations(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	filePath := getStringArg(args, "file_path")
	if qn == "" && filePath == "" {
		return errResult("qualified_name or file_path is required"), nil
	}
	direction := getStringArg(args, "direction")
	if direction == "" {
		direction = store.Inbound
	}
	if direction != store.Inbound && direction != store.Outbound {
		return errResult(fmt.Sprintf("direction must be %q or %q", store.Inbound, store.Outbound)), nil
	}
	edgeTypes := getStringsArg(args, "edge_types")
	if len(edgeTypes) == 0 {
		edgeTypes = []string{graph.EdgeCalls}
	}
	follow := edgeTypes
	if slices.Contains(edgeTypes, allEdgeTypes) {
		follow = nil
	}
	depth := min(max(getIntArg(args, "depth", 2), 1), 5)

	p, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	starts, err := s.traceStarts(p.Name, qn, filePath)
	if err != nil {
		return errResult(err.Error()), nil
	}

	traces := make([]traceInfo, 0, len(starts))
	for _, id := range starts {
		res, err := s.store.BFS(id, direction, follow, depth, 200)
		if err != nil {
			return errResult(fmt.Sprintf("bfs err: %v", err)), nil
		}
		t := traceInfo{Root: toHop(res.Root, 0), Visited: make([]hopInfo, 0, len(res.Visited)), Edges: res.Edges}
		for _, v := range res.Visited {
			t.Visited = append(t.Visited, toHop(v.Node, v.Hop))
		}
		if t.Edges == nil {
			t.Edges = []store.EdgeInfo{}
		}
		traces = append(traces, t)
	}
	if len(traces) == 0 {
		if qn == "" {
			return errResult(fmt.Sprintf("file not found: %s", filePath)), nil
		}
		return errResult(fmt.Sprintf("definition not found: %s", qn)), nil
	}
	return jsonResult(map[string]any{
		"project":    p.Name,
		"direction":  direction,
		"edge_types": edgeTypes,
		"traces":     traces,
	}), nil
}

// traceStarts returns the stored node ids to walk from: the file node when
// filePath is set, otherwise every definition named qn.
func (s *Server) traceStarts(project, qn, filePath string) ([]int64, error) {
	if filePath != "" {
		n, err := s.store.FindNode(project, graph.NodeFile, filePath)
		if err != nil || n == nil {
			return nil, err
		}
		return []int64{n.ID}, nil
	}
	defs, err := s.store.FindDefinitionsByQN(project, qn)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, d := range defs {
		if d.NodeID != 0 {
			ids = append(ids, d.NodeID)
		}
	}
	return ids, nil
}

func toHop(n *store.Node, hop int) hopInfo {
	return hopInfo{
		Type:       n.Type,
		Identifier: n.Identifier,
		Name:       n.Name,
		File:       n.FilePath,
		Line:       n.Line,
		Hop:        hop,
	}
}
