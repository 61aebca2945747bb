package models

import "time"

// MemoryType classifies what a Memory represents.
type MemoryType string

const (
	MemoryTypeDailyLog       MemoryType = "daily_log"
	MemoryTypeLongTerm       MemoryType = "long_term"
	MemoryTypeSessionSummary MemoryType = "session_summary"
	MemoryTypeCompaction     MemoryType = "compaction"
	MemoryTypePreference     MemoryType = "preference"
	MemoryTypeFact           MemoryType = "fact"
	MemoryTypeEntity         MemoryType = "entity"
	MemoryTypeTask           MemoryType = "task"
)

// MemorySourceType records how a Memory came to exist.
type MemorySourceType string

const (
	MemorySourceExplicit    MemorySourceType = "explicit"
	MemorySourceInferred    MemorySourceType = "inferred"
	MemorySourceConsolidated MemorySourceType = "consolidated"
	MemorySourceMerged      MemorySourceType = "merged"
)

// TemporalType describes how long a Memory's validity window is expected to hold.
type TemporalType string

const (
	TemporalPermanent TemporalType = "permanent"
	TemporalTemporary TemporalType = "temporary"
	TemporalScheduled TemporalType = "scheduled"
)

// Memory is one row of durable agent memory. It is never hard-deleted by
// consolidation or dedup — superseded rows stay queryable by id but drop out
// of every active read (see SupersededBy). Only an explicit delete_memory
// call or the expires_at sweep removes a row outright.
type Memory struct {
	ID       string     `json:"id"`
	Type     MemoryType `json:"type"`
	Content  string     `json:"content"`
	Category string     `json:"category,omitempty"`
	Tags     []string   `json:"tags,omitempty"`

	// Importance is on a 0..10 scale; consolidation sets it to the max of the
	// cluster it absorbs.
	Importance int `json:"importance"`

	IdentityID        string `json:"identity_id,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	SourceChannelType string `json:"source_channel_type,omitempty"`
	SourceMessageID   string `json:"source_message_id,omitempty"`

	// LogDate anchors daily_log entries to a calendar day.
	LogDate *time.Time `json:"log_date,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	EntityType string `json:"entity_type,omitempty"`
	EntityName string `json:"entity_name,omitempty"`

	// Confidence is 0..1; set for inferred/consolidated/merged memories.
	Confidence *float64          `json:"confidence,omitempty"`
	SourceType MemorySourceType  `json:"source_type,omitempty"`

	LastReferencedAt *time.Time `json:"last_referenced_at,omitempty"`

	// SupersededBy forms a DAG: a non-nil value excludes this row from every
	// active query, though it remains fetchable by id.
	SupersededBy *string    `json:"superseded_by,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`

	ValidFrom    *time.Time   `json:"valid_from,omitempty"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty"`
	TemporalType TemporalType `json:"temporal_type,omitempty"`
}

// Active reports whether m should be included in an active read: not
// superseded, and (if temporally bounded) currently within its validity
// window.
func (m *Memory) Active(now time.Time) bool {
	if m.SupersededBy != nil {
		return false
	}
	if m.ValidFrom != nil && now.Before(*m.ValidFrom) {
		return false
	}
	if m.ValidUntil != nil && now.After(*m.ValidUntil) {
		return false
	}
	return true
}

// Expired reports whether m is past its expires_at and eligible for the
// temporal sweep.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// MemoryEmbedding is the vector representation of a Memory, written
// asynchronously after the memory row exists and removed alongside it.
type MemoryEmbedding struct {
	MemoryID  string    `json:"memory_id"`
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	Dimension int       `json:"d"`
	CreatedAt time.Time `json:"created_at"`
}

// MemorySearchFilters narrows a hybrid search or consolidation pass.
type MemorySearchFilters struct {
	IdentityID string
	Type       MemoryType
	SessionID  string
}

// MemorySearchResult pairs a Memory with its fused retrieval score and the
// per-signal ranks that produced it, for diagnostics.
type MemorySearchResult struct {
	Memory     *Memory
	Score      float64
	BM25Rank   *int
	VectorRank *int
}
