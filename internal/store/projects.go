package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrProjectNotFound is returned when a project has never been saved.
var ErrProjectNotFound = errors.New("project not found")

// Project is an indexed repository.
type Project struct {
	Name         string
	IndexedAt    string
	RootPath     string
	Identifier   string
	IndexVersion string
}

// UpsertProject creates or updates a project record.
func (s *Store) UpsertProject(p Project) error {
	if p.IndexedAt == "" {
		p.IndexedAt = Now()
	}
	_, err := s.q.Exec(`
		INSERT INTO projects (name, indexed_at, root_path, identifier, index_version) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path,
			identifier=excluded.identifier, index_version=excluded.index_version`,
		p.Name, p.IndexedAt, p.RootPath, p.Identifier, p.IndexVersion)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject returns a project by name, or ErrProjectNotFound.
func (s *Store) GetProject(name string) (*Project, error) {
	var p Project
	err := s.q.QueryRow("SELECT name, indexed_at, root_path, identifier, index_version FROM projects WHERE name=?", name).
		Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.Identifier, &p.IndexVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all indexed projects.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query("SELECT name, indexed_at, root_path, identifier, index_version FROM projects ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.Identifier, &p.IndexVersion); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated rows.
func (s *Store) DeleteProject(name string) error {
	// edges reference nodes, definitions reference nodes
	for _, table := range []string{"edges", "definitions", "nodes", "file_hashes"} {
		if _, err := s.q.Exec("DELETE FROM "+table+" WHERE project=?", name); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	_, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	return err
}

// FileHash is a stored file content hash.
type FileHash struct {
	Project  string
	RelPath  string
	Hash     string
	Language string
	Size     int64
}

const fileHashBatchSize = 999 / 5

// UpsertFileHashBatch stores many file hashes.
func (s *Store) UpsertFileHashBatch(hashes []FileHash) error {
	for i := 0; i < len(hashes); i += fileHashBatchSize {
		batch := hashes[i:min(i+fileHashBatchSize, len(hashes))]
		var sb strings.Builder
		sb.WriteString("INSERT INTO file_hashes (project, rel_path, hash, language, size_bytes) VALUES ")
		args := make([]any, 0, len(batch)*5)
		for j, h := range batch {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?)")
			args = append(args, h.Project, h.RelPath, h.Hash, h.Language, h.Size)
		}
		sb.WriteString(` ON CONFLICT(project, rel_path) DO UPDATE SET
			hash=excluded.hash, language=excluded.language, size_bytes=excluded.size_bytes`)
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("upsert file hashes: %w", err)
		}
	}
	return nil
}

// GetFileHashes returns rel_path → hash for a project.
func (s *Store) GetFileHashes(project string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT rel_path, hash FROM file_hashes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}
