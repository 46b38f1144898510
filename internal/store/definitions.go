package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Definition is a class or function row, denormalized for SQL search.
type Definition struct {
	ID            int64
	Project       string
	NodeID        int64 // 0 when the definition has no graph node
	Name          string
	QualifiedName string
	Kind          string
	FilePath      string
	Line          int
	ColOffset     int
	IsMethod      bool
	IsAsync       bool
	Docstring     string
}

const definitionColumns = "id, project, node_id, name, qualified_name, kind, file_path, line, col_offset, is_method, is_async, docstring"

const numDefinitionCols = 11
const definitionsBatchSize = 999 / numDefinitionCols

// InsertDefinitionBatch inserts definition rows in batched multi-row INSERTs.
func (s *Store) InsertDefinitionBatch(defs []*Definition) error {
	for i := 0; i < len(defs); i += definitionsBatchSize {
		batch := defs[i:min(i+definitionsBatchSize, len(defs))]
		var sb strings.Builder
		sb.WriteString(`INSERT INTO definitions (project, node_id, name, qualified_name, kind, file_path, line, col_offset, is_method, is_async, docstring) VALUES `)
		args := make([]any, 0, len(batch)*numDefinitionCols)
		for j, d := range batch {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?)")
			var nodeID any
			if d.NodeID != 0 {
				nodeID = d.NodeID
			}
			var doc any
			if d.Docstring != "" {
				doc = d.Docstring
			}
			args = append(args, d.Project, nodeID, d.Name, d.QualifiedName, d.Kind, d.FilePath,
				d.Line, d.ColOffset, d.IsMethod, d.IsAsync, doc)
		}
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("insert definition batch: %w", err)
		}
	}
	return nil
}

// FindDefinitionsByQN returns the definitions with an exact qualified name.
func (s *Store) FindDefinitionsByQN(project, qualifiedName string) ([]*Definition, error) {
	rows, err := s.q.Query(`SELECT `+definitionColumns+` FROM definitions
		WHERE project=? AND qualified_name=? ORDER BY file_path, line`, project, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("find definitions by qn: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// SearchParams defines a definition search.
type SearchParams struct {
	Project     string
	NamePattern string // glob; a pattern without wildcards matches as a substring
	Kind        string
	FilePattern string // glob against file_path
	Limit       int
	Offset      int
}

// SearchOutput wraps search results with the total match count for pagination.
type SearchOutput struct {
	Results []*Definition
	Total   int
}

// SearchDefinitions runs a parameterized definition search. Name matching
// is case-insensitive.
func (s *Store) SearchDefinitions(params SearchParams) (*SearchOutput, error) {
	if params.Limit <= 0 {
		params.Limit = 100000
	}

	conditions := []string{"project = ?"}
	args := []any{params.Project}
	if params.NamePattern != "" {
		conditions = append(conditions, `name LIKE ? ESCAPE '\'`)
		args = append(args, namePatternToLike(params.NamePattern))
	}
	if params.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, params.Kind)
	}
	if params.FilePattern != "" {
		conditions = append(conditions, `file_path LIKE ? ESCAPE '\'`)
		args = append(args, globToLike(params.FilePattern))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.q.QueryRow("SELECT COUNT(*) FROM definitions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count definitions: %w", err)
	}

	query := `SELECT ` + definitionColumns + ` FROM definitions WHERE ` + where +
		` ORDER BY name, file_path, line LIMIT ? OFFSET ?`
	rows, err := s.q.Query(query, append(args, params.Limit, params.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("search definitions: %w", err)
	}
	defer rows.Close()
	results, err := scanDefinitions(rows)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Results: results, Total: total}, nil
}

func namePatternToLike(pattern string) string {
	if !strings.ContainsAny(pattern, "*?") {
		return "%" + escapeLike(pattern) + "%"
	}
	return globToLike(pattern)
}

// globToLike converts a glob to a LIKE pattern using '\' as escape.
func globToLike(pattern string) string {
	result := escapeLike(pattern)
	result = strings.ReplaceAll(result, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanDefinitions(rows *sql.Rows) ([]*Definition, error) {
	var result []*Definition
	for rows.Next() {
		var d Definition
		var nodeID sql.NullInt64
		var doc sql.NullString
		if err := rows.Scan(&d.ID, &d.Project, &nodeID, &d.Name, &d.QualifiedName, &d.Kind, &d.FilePath,
			&d.Line, &d.ColOffset, &d.IsMethod, &d.IsAsync, &doc); err != nil {
			return nil, err
		}
		d.NodeID = nodeID.Int64
		d.Docstring = doc.String
		result = append(result, &d)
	}
	return result, rows.Err()
}
