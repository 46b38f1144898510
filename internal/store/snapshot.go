package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DeusData/codeindex/internal/graph"
	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/pipeline"
)

// SaveSnapshot replaces everything stored for project with the snapshot:
// project metadata and statistics, file hashes, graph nodes and edges,
// definitions and the serialized inverted index. It runs in one transaction.
func (s *Store) SaveSnapshot(project string, snap *pipeline.Snapshot) error {
	stats, err := json.Marshal(snap.Statistics)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	idx := snap.Index
	if idx == nil {
		idx = index.New()
	}
	inverted, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	return s.WithTransaction(func(tx *Store) error {
		if err := tx.DeleteProject(project); err != nil {
			return err
		}
		if err := tx.UpsertProject(Project{
			Name:         project,
			IndexedAt:    snap.Metadata.IndexedAt,
			RootPath:     snap.Metadata.RootPath,
			Identifier:   snap.Metadata.RepositoryIdentifier,
			IndexVersion: snap.Metadata.IndexVersion,
		}); err != nil {
			return err
		}
		if _, err := tx.q.Exec("UPDATE projects SET statistics=?, inverted_index=? WHERE name=?",
			string(stats), string(inverted), project); err != nil {
			return fmt.Errorf("store index: %w", err)
		}

		hashes := make([]FileHash, 0, len(snap.Files))
		for _, f := range snap.Files {
			if f.Hash == "" {
				continue
			}
			hashes = append(hashes, FileHash{
				Project: project, RelPath: f.RelPath, Hash: f.Hash,
				Language: string(f.Language), Size: f.Size,
			})
		}
		if err := tx.UpsertFileHashBatch(hashes); err != nil {
			return err
		}

		ids, err := tx.saveGraph(project, snap.Graph)
		if err != nil {
			return err
		}
		return tx.saveDefinitions(project, snap, ids)
	})
}

func (s *Store) saveGraph(project string, g *graph.CodeGraph) (map[int]int64, error) {
	if g == nil {
		return map[int]int64{}, nil
	}
	nodes := make([]*Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = nodeFromGraph(project, n)
	}
	ids, err := s.InsertNodeBatch(project, nodes)
	if err != nil {
		return nil, err
	}

	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		src, srcOK := ids[e.Source]
		dst, dstOK := ids[e.Target]
		if !srcOK || !dstOK {
			slog.Warn("store.edge.dangling", "project", project, "type", e.Type, "source", e.Source, "target", e.Target)
			continue
		}
		edges = append(edges, &Edge{Project: project, SourceID: src, TargetID: dst, Type: e.Type, Properties: e.Properties})
	}
	if err := s.InsertEdgeBatch(edges); err != nil {
		return nil, err
	}
	return ids, nil
}

// nodeFromGraph lifts the searchable properties of a graph node into columns.
func nodeFromGraph(project string, n graph.Node) *Node {
	out := &Node{
		Project:    project,
		GraphID:    n.ID,
		Type:       n.Type,
		Identifier: n.Identifier,
		Properties: n.Properties,
	}
	if name, ok := n.Properties["name"].(string); ok {
		out.Name = name
	}
	switch n.Type {
	case graph.NodeFile:
		out.FilePath = n.Identifier
	case graph.NodeDirectory:
	default:
		if file, ok := n.Properties["file"].(string); ok {
			out.FilePath = file
		}
	}
	switch line := n.Properties["line"].(type) {
	case int:
		out.Line = line
	case float64:
		out.Line = int(line)
	}
	return out
}

func (s *Store) saveDefinitions(project string, snap *pipeline.Snapshot, ids map[int]int64) error {
	graphIDs := map[[2]string]int{}
	if snap.Graph != nil {
		for _, n := range snap.Graph.Nodes {
			graphIDs[[2]string{n.Type, n.Identifier}] = n.ID
		}
	}
	var rows []*Definition
	for _, f := range snap.Files {
		if f.Symbols == nil {
			continue
		}
		for _, d := range f.Symbols.Definitions {
			row := &Definition{
				Project:       project,
				Name:          d.Name,
				QualifiedName: d.QualifiedName,
				Kind:          string(d.Kind),
				FilePath:      f.RelPath,
				Line:          d.Line,
				ColOffset:     d.ColOffset,
				IsMethod:      d.IsMethod,
				IsAsync:       d.IsAsync,
			}
			if d.Docstring != nil {
				row.Docstring = *d.Docstring
			}
			if gid, ok := graphIDs[[2]string{string(d.Kind), graph.DefinitionID(f.RelPath, d)}]; ok {
				row.NodeID = ids[gid]
			}
			rows = append(rows, row)
		}
	}
	return s.InsertDefinitionBatch(rows)
}

// LoadIndex returns the inverted index saved for project.
func (s *Store) LoadIndex(project string) (*index.Index, error) {
	var data string
	err := s.q.QueryRow("SELECT inverted_index FROM projects WHERE name=?", project).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	idx := index.New()
	if err := json.Unmarshal([]byte(data), idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return idx, nil
}

// LoadStatistics returns the snapshot statistics saved for project.
func (s *Store) LoadStatistics(project string) (*pipeline.Statistics, error) {
	var data string
	err := s.q.QueryRow("SELECT statistics FROM projects WHERE name=?", project).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	var st pipeline.Statistics
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("decode statistics: %w", err)
	}
	return &st, nil
}
