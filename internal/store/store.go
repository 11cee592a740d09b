// Package store persists rich memory objects in SQLite. The schema covers
// the memories table, a file graph (files, memory_files, file_relations),
// and an optional vec0 virtual table for semantic search.
//
// The database runs in WAL mode with a 5 second busy timeout so concurrent
// hook processes never corrupt it. All list-valued memory fields are stored
// as JSON text columns.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pactd/internal/logging"
	"pactd/internal/memory"
)

// MemoryStore is the SQLite-backed store for memory objects.
type MemoryStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	vectorExt bool
	vectorDim int
}

// Open initializes the database at the given path, creating parent
// directories and the schema as needed.
func Open(path string) (*MemoryStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening memory store at %s", path)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	s := &MemoryStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectVecExtension()
	if s.vectorExt {
		logging.Store("vec0 virtual table support detected")
	} else {
		logging.StoreDebug("vec0 unavailable; semantic search disabled, keyword search still works")
	}
	return s, nil
}

// Close releases the database connection.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for maintenance commands.
func (s *MemoryStore) DB() *sql.DB {
	return s.db
}

func (s *MemoryStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			context TEXT,
			goal TEXT,
			active_tasks TEXT,
			lessons_learned TEXT,
			decisions TEXT,
			entities TEXT,
			reasoning_chains TEXT,
			agreements_reached TEXT,
			disagreements_resolved TEXT,
			project_id TEXT,
			session_id TEXT,
			created_at TEXT DEFAULT (datetime('now')),
			updated_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			path TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			last_modified TEXT,
			UNIQUE(path, project_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_files (
			memory_id TEXT REFERENCES memories(id) ON DELETE CASCADE,
			file_id TEXT REFERENCES files(id),
			relationship TEXT DEFAULT 'modified',
			PRIMARY KEY (memory_id, file_id)
		)`,
		`CREATE TABLE IF NOT EXISTS file_relations (
			source_file TEXT REFERENCES files(id),
			target_file TEXT REFERENCES files(id),
			relationship TEXT,
			PRIMARY KEY (source_file, target_file, relationship)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_files_file ON memory_files(file_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}
	s.migrateConversationColumns()
	return nil
}

// migrateConversationColumns adds the conversation-tracking columns to
// databases created before they existed. Safe to run repeatedly.
func (s *MemoryStore) migrateConversationColumns() {
	for _, col := range []string{"reasoning_chains", "agreements_reached", "disagreements_resolved"} {
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE memories ADD COLUMN %s TEXT", col)); err == nil {
			logging.StoreDebug("added column memories.%s", col)
		}
	}
}

// NewID returns a fresh hex-encoded 16-byte identifier.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read on supported platforms never fails
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Create inserts a new memory and returns its id. A missing id is
// generated; CreatedAt and UpdatedAt are set to now.
func (s *MemoryStore) Create(m *memory.MemoryObject) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := m.ID
	if id == "" {
		id = NewID()
	}
	now := nowUTC()

	_, err := s.db.Exec(`
		INSERT INTO memories (
			id, context, goal, active_tasks, lessons_learned,
			decisions, entities, reasoning_chains, agreements_reached,
			disagreements_resolved, project_id, session_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullable(m.Context), nullable(m.Goal),
		marshalList(m.ActiveTasks), marshalList(m.LessonsLearned),
		marshalList(m.Decisions), marshalList(m.Entities),
		marshalList(m.ReasoningChains), marshalList(m.AgreementsReached),
		marshalList(m.DisagreementsResolved),
		nullable(m.ProjectID), nullable(m.SessionID), now, now)
	if err != nil {
		return "", fmt.Errorf("create memory: %w", err)
	}
	logging.StoreDebug("created memory %s", id)
	return id, nil
}

// Get returns a memory by id with its linked files, or nil when absent.
func (s *MemoryStore) Get(id string) (*memory.MemoryObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	files, err := s.filesForLocked(id)
	if err != nil {
		return nil, err
	}
	m.Files = files
	return m, nil
}

// Update replaces the stored fields of an existing memory. Returns false
// when no memory with that id exists. CreatedAt is never touched.
func (s *MemoryStore) Update(m *memory.MemoryObject) (bool, error) {
	if m.ID == "" {
		return false, fmt.Errorf("update memory: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE memories SET
			context = ?, goal = ?, active_tasks = ?, lessons_learned = ?,
			decisions = ?, entities = ?, reasoning_chains = ?,
			agreements_reached = ?, disagreements_resolved = ?,
			project_id = ?, session_id = ?, updated_at = ?
		WHERE id = ?`,
		nullable(m.Context), nullable(m.Goal),
		marshalList(m.ActiveTasks), marshalList(m.LessonsLearned),
		marshalList(m.Decisions), marshalList(m.Entities),
		marshalList(m.ReasoningChains), marshalList(m.AgreementsReached),
		marshalList(m.DisagreementsResolved),
		nullable(m.ProjectID), nullable(m.SessionID), nowUTC(), m.ID)
	if err != nil {
		return false, fmt.Errorf("update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a memory. Linked memory_files rows cascade.
func (s *MemoryStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	if s.vectorExt {
		_, _ = s.db.Exec("DELETE FROM vec_memories WHERE memory_id = ?", id)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListOptions filters and pages List results.
type ListOptions struct {
	ProjectID string
	SessionID string
	Limit     int
	Offset    int
}

// List returns memories ordered by created_at DESC.
func (s *MemoryStore) List(opts ListOptions) ([]*memory.MemoryObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT " + memoryColumns + " FROM memories"
	var conds []string
	var params []any
	if opts.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		params = append(params, opts.ProjectID)
	}
	if opts.SessionID != "" {
		conds = append(conds, "session_id = ?")
		params = append(params, opts.SessionID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	params = append(params, limit, opts.Offset)

	return s.queryMemories(query, params...)
}

// Search does substring matching across the seven text fields. LIKE
// wildcards in the term are escaped so literal % and _ match themselves.
func (s *MemoryStore) Search(term, projectID string, limit int) ([]*memory.MemoryObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(term) + "%"

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE (
		context LIKE ? ESCAPE '\'
		OR goal LIKE ? ESCAPE '\'
		OR lessons_learned LIKE ? ESCAPE '\'
		OR decisions LIKE ? ESCAPE '\'
		OR reasoning_chains LIKE ? ESCAPE '\'
		OR agreements_reached LIKE ? ESCAPE '\'
		OR disagreements_resolved LIKE ? ESCAPE '\'
	)`
	params := make([]any, 0, 9)
	for i := 0; i < 7; i++ {
		params = append(params, pattern)
	}
	if projectID != "" {
		query += " AND project_id = ?"
		params = append(params, projectID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	params = append(params, limit)

	return s.queryMemories(query, params...)
}

// Count returns the number of memories, optionally scoped to a project.
func (s *MemoryStore) Count(projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	var err error
	if projectID != "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM memories WHERE project_id = ?", projectID).Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&n)
	}
	return n, err
}

// escapeLike backslash-escapes LIKE metacharacters in a search term.
func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, "%", `\%`)
	term = strings.ReplaceAll(term, "_", `\_`)
	return term
}

const memoryColumns = `id, context, goal, active_tasks, lessons_learned,
	decisions, entities, reasoning_chains, agreements_reached,
	disagreements_resolved, project_id, session_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*memory.MemoryObject, error) {
	var id string
	var cols [13]sql.NullString
	dest := make([]any, 0, 14)
	dest = append(dest, &id)
	for i := range cols {
		dest = append(dest, &cols[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	data := map[string]any{"id": id}
	names := []string{
		"context", "goal", "active_tasks", "lessons_learned", "decisions",
		"entities", "reasoning_chains", "agreements_reached",
		"disagreements_resolved", "project_id", "session_id",
		"created_at", "updated_at",
	}
	for i, name := range names {
		if cols[i].Valid {
			data[name] = cols[i].String
		}
	}
	return memory.FromMap(data), nil
}

func (s *MemoryStore) queryMemories(query string, params ...any) ([]*memory.MemoryObject, error) {
	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []*memory.MemoryObject
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// marshalList JSON-encodes a list field, storing NULL for empty lists.
func marshalList(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" || string(b) == "[]" {
		return nil
	}
	return string(b)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Stats returns per-table row counts.
func (s *MemoryStore) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"memories", "files", "memory_files", "file_relations"} {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// Vacuum reclaims disk space.
func (s *MemoryStore) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("VACUUM")
	return err
}

// CheckIntegrity runs SQLite's integrity check.
func (s *MemoryStore) CheckIntegrity() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, err
	}
	return result == "ok", nil
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EncodeVector packs a float32 slice as the little-endian blob format the
// vec0 table expects.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
