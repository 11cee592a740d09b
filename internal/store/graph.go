package store

import (
	"fmt"

	"pactd/internal/logging"
)

// FileRelation is an edge between two files (imports, tests, etc.).
type FileRelation struct {
	SourcePath   string
	TargetPath   string
	Relationship string
}

// LinkFile associates a memory with a file path, creating the file node if
// needed. relationship defaults to "modified".
func (s *MemoryStore) LinkFile(memoryID, path, projectID, relationship string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if relationship == "" {
		relationship = "modified"
	}
	fileID, err := s.ensureFileLocked(path, projectID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO memory_files (memory_id, file_id, relationship)
		VALUES (?, ?, ?)`, memoryID, fileID, relationship)
	if err != nil {
		return fmt.Errorf("link file: %w", err)
	}
	logging.StoreDebug("linked memory %s to file %s (%s)", memoryID, path, relationship)
	return nil
}

// FilesFor returns the paths linked to a memory, sorted.
func (s *MemoryStore) FilesFor(memoryID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filesForLocked(memoryID)
}

func (s *MemoryStore) filesForLocked(memoryID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT f.path FROM memory_files mf
		JOIN files f ON f.id = mf.file_id
		WHERE mf.memory_id = ?
		ORDER BY f.path`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("files for memory: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MemoriesForFile returns ids of memories linked to a file path.
func (s *MemoryStore) MemoriesForFile(path, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT mf.memory_id FROM memory_files mf
		JOIN files f ON f.id = mf.file_id
		WHERE f.path = ? AND f.project_id = ?`, path, projectID)
	if err != nil {
		return nil, fmt.Errorf("memories for file: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RelateFiles records a relationship edge between two file paths, creating
// file nodes as needed. Duplicate edges are ignored.
func (s *MemoryStore) RelateFiles(sourcePath, targetPath, projectID, relationship string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcID, err := s.ensureFileLocked(sourcePath, projectID)
	if err != nil {
		return err
	}
	dstID, err := s.ensureFileLocked(targetPath, projectID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO file_relations (source_file, target_file, relationship)
		VALUES (?, ?, ?)`, srcID, dstID, relationship)
	if err != nil {
		return fmt.Errorf("relate files: %w", err)
	}
	return nil
}

// RelatedFiles returns outgoing relations from a file path.
func (s *MemoryStore) RelatedFiles(path, projectID string) ([]FileRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT src.path, dst.path, fr.relationship
		FROM file_relations fr
		JOIN files src ON src.id = fr.source_file
		JOIN files dst ON dst.id = fr.target_file
		WHERE src.path = ? AND src.project_id = ?
		ORDER BY dst.path`, path, projectID)
	if err != nil {
		return nil, fmt.Errorf("related files: %w", err)
	}
	defer rows.Close()

	var out []FileRelation
	for rows.Next() {
		var r FileRelation
		if err := rows.Scan(&r.SourcePath, &r.TargetPath, &r.Relationship); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ensureFileLocked upserts a file node and returns its id. Caller holds the
// write lock.
func (s *MemoryStore) ensureFileLocked(path, projectID string) (string, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT id FROM files WHERE path = ? AND project_id = ?",
		path, projectID).Scan(&id)
	if err == nil {
		_, _ = s.db.Exec("UPDATE files SET last_modified = ? WHERE id = ?", nowUTC(), id)
		return id, nil
	}

	id = NewID()
	_, err = s.db.Exec(
		"INSERT INTO files (id, path, project_id, last_modified) VALUES (?, ?, ?, ?)",
		id, path, projectID, nowUTC())
	if err != nil {
		return "", fmt.Errorf("ensure file %s: %w", path, err)
	}
	return id, nil
}
