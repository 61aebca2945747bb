// Package memorystore is the relational backing for durable agent memory: a
// single table of typed Memory rows, an FTS5 index over their content, and
// an auxiliary embedding table, plus the hybrid search and consolidation
// passes that run over them.
package memorystore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go driver, same choice as the sqlitevec memory backend

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// Store owns the sqlite connection backing memories, their FTS shadow table,
// and their embeddings.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the sqlite database at path and migrates its
// schema. path may be ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, fmt.Errorf("open %s: %w", path, err))
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT,
			tags TEXT,
			importance INTEGER NOT NULL DEFAULT 0,
			identity_id TEXT,
			session_id TEXT,
			source_channel_type TEXT,
			source_message_id TEXT,
			log_date DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME,
			entity_type TEXT,
			entity_name TEXT,
			confidence REAL,
			source_type TEXT,
			last_referenced_at DATETIME,
			superseded_by TEXT,
			superseded_at DATETIME,
			valid_from DATETIME,
			valid_until DATETIME,
			temporal_type TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_identity ON memories(identity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_superseded ON memories(superseded_by)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			id UNINDEXED, content, content='memories', content_rowid='rowid'
		)`,
		`CREATE TABLE IF NOT EXISTS memory_embeddings (
			memory_id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			model TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return apperrors.NewMemoryError(apperrors.MemoryConstraint, fmt.Errorf("migrate: %w", err))
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new memory, assigning an id and timestamps if unset, and
// keeps the FTS shadow table in sync.
func (s *Store) Create(ctx context.Context, m *models.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO memories (
		id, type, content, category, tags, importance, identity_id, session_id,
		source_channel_type, source_message_id, log_date, created_at, updated_at,
		expires_at, entity_type, entity_name, confidence, source_type,
		last_referenced_at, superseded_by, superseded_at, valid_from, valid_until, temporal_type
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, string(m.Type), m.Content, nullStr(m.Category), encodeTags(m.Tags), m.Importance,
		nullStr(m.IdentityID), nullStr(m.SessionID), nullStr(m.SourceChannelType), nullStr(m.SourceMessageID),
		nullTime(m.LogDate), m.CreatedAt, m.UpdatedAt, nullTime(m.ExpiresAt),
		nullStr(m.EntityType), nullStr(m.EntityName), nullFloat(m.Confidence), nullStr(string(m.SourceType)),
		nullTime(m.LastReferencedAt), nullStr(derefStr(m.SupersededBy)), nullTime(m.SupersededAt),
		nullTime(m.ValidFrom), nullTime(m.ValidUntil), nullStr(string(m.TemporalType)),
	)
	if err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, fmt.Errorf("insert memory: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts (id, content) VALUES (?, ?)`, m.ID, m.Content); err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, fmt.Errorf("index memory: %w", err))
	}
	return tx.Commit()
}

// Get fetches a memory by id regardless of supersession state.
func (s *Store) Get(ctx context.Context, id string) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx, memorySelectColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewMemoryError(apperrors.MemoryNotFound, fmt.Errorf("memory %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	return m, nil
}

// Delete hard-deletes a memory and its embedding. Only the explicit
// delete_memory operation and the TTL sweep use this; supersession is a soft
// replace via Supersede.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, id); err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_id = ?`, id); err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	return tx.Commit()
}

// Supersede marks old as replaced by newID. old drops out of every active
// read but remains fetchable by id, per the Memory.SupersededBy invariant.
func (s *Store) Supersede(ctx context.Context, oldID, newID string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET superseded_by = ?, superseded_at = ?, updated_at = ? WHERE id = ?`,
		newID, now, now, oldID)
	if err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewMemoryError(apperrors.MemoryNotFound, fmt.Errorf("memory %s not found", oldID))
	}
	return nil
}

// CleanupExpired deletes every row whose expires_at has passed, returning
// the count removed.
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// PutEmbedding writes or replaces a memory's embedding vector.
func (s *Store) PutEmbedding(ctx context.Context, e *models.MemoryEmbedding) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO memory_embeddings (memory_id, embedding, model, dimensions, created_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(memory_id) DO UPDATE SET embedding=excluded.embedding, model=excluded.model, dimensions=excluded.dimensions, created_at=excluded.created_at`,
		e.MemoryID, encodeEmbedding(e.Vector), e.Model, e.Dimension, e.CreatedAt)
	if err != nil {
		return apperrors.NewMemoryError(apperrors.MemoryEmbedding, err)
	}
	return nil
}
