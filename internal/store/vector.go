package store

import (
	"fmt"

	"pactd/internal/logging"
)

// VectorMatch is one semantic search hit.
type VectorMatch struct {
	MemoryID string
	Distance float64
}

// VectorEnabled reports whether the vec0 table is ready for use.
func (s *MemoryStore) VectorEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorExt && s.vectorDim > 0
}

// detectVecExtension probes for vec0 virtual table support.
func (s *MemoryStore) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(memory_id TEXT, project_id TEXT, embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// EnableVector creates the vec_memories table for the given embedding
// dimension. If an existing table was built for a different dimension it is
// dropped and recreated; stored embeddings must then be regenerated.
func (s *MemoryStore) EnableVector(dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.vectorExt {
		return fmt.Errorf("vec0 virtual table support not available")
	}
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS vec_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		dimension INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("vec state table: %w", err)
	}

	var current int
	err := s.db.QueryRow("SELECT dimension FROM vec_state WHERE id = 1").Scan(&current)
	if err == nil && current != dim {
		logging.Get(logging.CategoryStore).Warn(
			"embedding dimension changed %d -> %d; dropping vec_memories, embeddings must be regenerated", current, dim)
		if _, err := s.db.Exec("DROP TABLE IF EXISTS vec_memories"); err != nil {
			return fmt.Errorf("drop stale vec table: %w", err)
		}
	}

	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(
		memory_id TEXT,
		project_id TEXT,
		embedding float[%d]
	)`, dim)
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create vec table: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO vec_state (id, dimension) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET dimension = excluded.dimension`, dim); err != nil {
		return fmt.Errorf("record vec dimension: %w", err)
	}

	s.vectorDim = dim
	logging.Store("vector table ready (dimension=%d)", dim)
	return nil
}

// UpsertEmbedding stores the embedding for a memory, replacing any prior
// row for the same memory id.
func (s *MemoryStore) UpsertEmbedding(memoryID, projectID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectorDim == 0 {
		return fmt.Errorf("vector table not enabled")
	}
	if len(embedding) != s.vectorDim {
		return fmt.Errorf("embedding dimension %d does not match table dimension %d", len(embedding), s.vectorDim)
	}

	if _, err := s.db.Exec("DELETE FROM vec_memories WHERE memory_id = ?", memoryID); err != nil {
		return fmt.Errorf("clear old embedding: %w", err)
	}
	_, err := s.db.Exec(
		"INSERT INTO vec_memories (memory_id, project_id, embedding) VALUES (?, ?, ?)",
		memoryID, projectID, EncodeVector(embedding))
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// SearchVector returns the memories nearest to the query embedding by
// cosine distance, smallest first.
func (s *MemoryStore) SearchVector(embedding []float32, projectID string, limit int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectorDim == 0 {
		return nil, fmt.Errorf("vector table not enabled")
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(
		"SELECT memory_id, %s(embedding, ?) AS distance FROM vec_memories", distanceFn)
	params := []any{EncodeVector(embedding)}
	if projectID != "" {
		query += " WHERE project_id = ?"
		params = append(params, projectID)
	}
	query += " ORDER BY distance LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.MemoryID, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
