package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const nodeColumns = "id, project, graph_id, type, identifier, name, file_path, line, properties"

// FindNodeByID finds a node by its primary key ID.
func (s *Store) FindNodeByID(id int64) (*Node, error) {
	row := s.q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id=?`, id)
	return scanNode(row)
}

// FindNode finds a node by project, type and identifier.
func (s *Store) FindNode(project, typ, identifier string) (*Node, error) {
	row := s.q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND type=? AND identifier=?`,
		project, typ, identifier)
	return scanNode(row)
}

// FindNodesByName finds nodes by project and name.
func (s *Store) FindNodesByName(project, name string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND name=? ORDER BY graph_id`, project, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByType finds all nodes of a given type in a project.
func (s *Store) FindNodesByType(project, typ string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND type=? ORDER BY graph_id`, project, typ)
	if err != nil {
		return nil, fmt.Errorf("find by type: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a project.
func (s *Store) CountNodes(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE project=?", project).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.Project, &n.GraphID, &n.Type, &n.Identifier, &n.Name, &n.FilePath, &n.Line, &props)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numNodeCols = 8
const nodesBatchSize = 999 / numNodeCols // = 124

// InsertNodeBatch inserts nodes in batched multi-row INSERTs and returns a
// map of GraphID → row ID for the project.
func (s *Store) InsertNodeBatch(project string, nodes []*Node) (map[int]int64, error) {
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := min(i+nodesBatchSize, len(nodes))
		if err := s.insertNodeChunk(nodes[i:end]); err != nil {
			return nil, err
		}
	}
	return s.nodeIDMap(project)
}

func (s *Store) insertNodeChunk(batch []*Node) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (project, graph_id, type, identifier, name, file_path, line, properties) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, n.Project, n.GraphID, n.Type, n.Identifier, n.Name, n.FilePath, n.Line, marshalProps(n.Properties))
	}
	sb.WriteString(` ON CONFLICT(project, type, identifier) DO UPDATE SET
		graph_id=excluded.graph_id, name=excluded.name, file_path=excluded.file_path,
		line=excluded.line, properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert node batch: %w", err)
	}
	return nil
}

// nodeIDMap recovers the row IDs of every node in a project.
func (s *Store) nodeIDMap(project string) (map[int]int64, error) {
	rows, err := s.q.Query("SELECT graph_id, id FROM nodes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("resolve node IDs: %w", err)
	}
	defer rows.Close()
	ids := make(map[int]int64)
	for rows.Next() {
		var gid int
		var id int64
		if err := rows.Scan(&gid, &id); err != nil {
			return nil, err
		}
		ids[gid] = id
	}
	return ids, rows.Err()
}
