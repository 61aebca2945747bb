package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &models.Memory{Type: models.MemoryTypeFact, Content: "the sky is blue", Importance: 5, IdentityID: "u1"}
	if err := s.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != m.Content || got.IdentityID != "u1" {
		t.Fatalf("unexpected memory: %+v", got)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	var memErr *apperrors.MemoryError
	if !asMemoryError(err, &memErr) || memErr.Reason != apperrors.MemoryNotFound {
		t.Fatalf("expected MemoryNotFound, got %v", err)
	}
}

func TestSupersedeExcludesFromActiveRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &models.Memory{Type: models.MemoryTypeFact, Content: "old fact", IdentityID: "u1"}
	repl := &models.Memory{Type: models.MemoryTypeFact, Content: "new fact", IdentityID: "u1"}
	if err := s.Create(ctx, old); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if err := s.Create(ctx, repl); err != nil {
		t.Fatalf("create repl: %v", err)
	}
	if err := s.Supersede(ctx, old.ID, repl.ID); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	got, err := s.Get(ctx, old.ID)
	if err != nil {
		t.Fatalf("get superseded by id should still succeed: %v", err)
	}
	if got.SupersededBy == nil || *got.SupersededBy != repl.ID {
		t.Fatalf("expected superseded_by to be set, got %+v", got.SupersededBy)
	}
	if got.Active(time.Now()) {
		t.Fatalf("expected superseded memory to be inactive")
	}
}

func TestSupersedeUnknownIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Supersede(context.Background(), "nope", "also-nope")
	var memErr *apperrors.MemoryError
	if !asMemoryError(err, &memErr) || memErr.Reason != apperrors.MemoryNotFound {
		t.Fatalf("expected MemoryNotFound, got %v", err)
	}
}

func TestCleanupExpiredDeletesPastRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := &models.Memory{Type: models.MemoryTypeFact, Content: "stale", ExpiresAt: &past}
	fresh := &models.Memory{Type: models.MemoryTypeFact, Content: "still good", ExpiresAt: &future}
	if err := s.Create(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := s.Create(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	n, err := s.CleanupExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row removed, got %d", n)
	}
	if _, err := s.Get(ctx, expired.ID); err == nil {
		t.Fatalf("expected expired memory to be gone")
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("expected fresh memory to remain: %v", err)
	}
}

func TestHybridSearchBM25OnlyWhenEmbeddingsDisabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &models.Memory{Type: models.MemoryTypeFact, Content: "wombats are marsupials from Australia"}
	b := &models.Memory{Type: models.MemoryTypeFact, Content: "the weather today is sunny"}
	for _, m := range []*models.Memory{a, b} {
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	results, err := s.HybridSearch(ctx, "wombats", models.MemorySearchFilters{}, 5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != a.ID {
		t.Fatalf("expected only the wombat memory to match, got %+v", results)
	}
	if results[0].VectorRank != nil {
		t.Fatalf("expected no vector rank when embeddings are disabled")
	}
}

func asMemoryError(err error, target **apperrors.MemoryError) bool {
	me, ok := err.(*apperrors.MemoryError)
	if !ok {
		return false
	}
	*target = me
	return true
}
