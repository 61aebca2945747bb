package memorystore

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/nexuscore/agent/pkg/models"
)

const memorySelectColumns = `SELECT
	id, type, content, category, tags, importance, identity_id, session_id,
	source_channel_type, source_message_id, log_date, created_at, updated_at,
	expires_at, entity_type, entity_name, confidence, source_type,
	last_referenced_at, superseded_by, superseded_at, valid_from, valid_until, temporal_type`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemory decodes one memories row in the exact column order produced by
// memorySelectColumns.
func scanMemory(row rowScanner) (*models.Memory, error) {
	var (
		m                                                                     models.Memory
		typ, category, tags, identityID, sessionID, sourceChannelType         sql.NullString
		sourceMessageID, entityType, entityName, sourceType, temporalType     sql.NullString
		supersededBy                                                          sql.NullString
		logDate, expiresAt, lastReferencedAt, supersededAt, validFrom         sql.NullTime
		validUntil                                                           sql.NullTime
		confidence                                                           sql.NullFloat64
	)
	if err := row.Scan(
		&m.ID, &typ, &m.Content, &category, &tags, &m.Importance, &identityID, &sessionID,
		&sourceChannelType, &sourceMessageID, &logDate, &m.CreatedAt, &m.UpdatedAt,
		&expiresAt, &entityType, &entityName, &confidence, &sourceType,
		&lastReferencedAt, &supersededBy, &supersededAt, &validFrom, &validUntil, &temporalType,
	); err != nil {
		return nil, err
	}

	m.Type = models.MemoryType(typ.String)
	m.Category = category.String
	m.Tags = decodeTags(tags.String)
	m.IdentityID = identityID.String
	m.SessionID = sessionID.String
	m.SourceChannelType = sourceChannelType.String
	m.SourceMessageID = sourceMessageID.String
	m.EntityType = entityType.String
	m.EntityName = entityName.String
	m.SourceType = models.MemorySourceType(sourceType.String)
	m.TemporalType = models.TemporalType(temporalType.String)

	if logDate.Valid {
		m.LogDate = &logDate.Time
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	if lastReferencedAt.Valid {
		m.LastReferencedAt = &lastReferencedAt.Time
	}
	if supersededAt.Valid {
		m.SupersededAt = &supersededAt.Time
	}
	if validFrom.Valid {
		m.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		m.ValidUntil = &validUntil.Time
	}
	if supersededBy.Valid && supersededBy.String != "" {
		v := supersededBy.String
		m.SupersededBy = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		m.Confidence = &v
	}
	return &m, nil
}

// scanMemoryWithEmbedding scans a memories row joined with a trailing
// embedding BLOB column, reusing scanMemory's column layout.
func scanMemoryWithEmbedding(rows *sql.Rows) (*models.Memory, []byte, error) {
	var (
		m                                                                     models.Memory
		typ, category, tags, identityID, sessionID, sourceChannelType         sql.NullString
		sourceMessageID, entityType, entityName, sourceType, temporalType     sql.NullString
		supersededBy                                                          sql.NullString
		logDate, expiresAt, lastReferencedAt, supersededAt, validFrom         sql.NullTime
		validUntil                                                           sql.NullTime
		confidence                                                           sql.NullFloat64
		blob                                                                  []byte
	)
	if err := rows.Scan(
		&m.ID, &typ, &m.Content, &category, &tags, &m.Importance, &identityID, &sessionID,
		&sourceChannelType, &sourceMessageID, &logDate, &m.CreatedAt, &m.UpdatedAt,
		&expiresAt, &entityType, &entityName, &confidence, &sourceType,
		&lastReferencedAt, &supersededBy, &supersededAt, &validFrom, &validUntil, &temporalType,
		&blob,
	); err != nil {
		return nil, nil, err
	}

	m.Type = models.MemoryType(typ.String)
	m.Category = category.String
	m.Tags = decodeTags(tags.String)
	m.IdentityID = identityID.String
	m.SessionID = sessionID.String
	m.SourceChannelType = sourceChannelType.String
	m.SourceMessageID = sourceMessageID.String
	m.EntityType = entityType.String
	m.EntityName = entityName.String
	m.SourceType = models.MemorySourceType(sourceType.String)
	m.TemporalType = models.TemporalType(temporalType.String)
	if logDate.Valid {
		m.LogDate = &logDate.Time
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	if lastReferencedAt.Valid {
		m.LastReferencedAt = &lastReferencedAt.Time
	}
	if supersededAt.Valid {
		m.SupersededAt = &supersededAt.Time
	}
	if validFrom.Valid {
		m.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		m.ValidUntil = &validUntil.Time
	}
	if supersededBy.Valid && supersededBy.String != "" {
		v := supersededBy.String
		m.SupersededBy = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		m.Confidence = &v
	}
	return &m, blob, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func encodeTags(tags []string) string { return strings.Join(tags, "\x1f") }

func decodeTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}

// encodeEmbedding packs a float32 vector as little-endian bytes, the wire
// format §6 declares for memory_embeddings.embedding — the same packing the
// sqlite-vec memory backend used, minus its vec0-extension placeholder.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosineSimilarity is computed in f64 from f32 vectors per §4.3; unequal
// lengths or a zero-norm side return 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
