package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscore/agent/pkg/models"
)

type fakeTextGenerator struct {
	text string
}

func (f *fakeTextGenerator) GenerateText(ctx context.Context, system string, history []models.Message) (string, error) {
	return f.text, nil
}

func createWithEmbedding(t *testing.T, s *Store, content string, importance int, vector []float32) *models.Memory {
	t.Helper()
	ctx := context.Background()
	m := &models.Memory{Type: models.MemoryTypeFact, Content: content, Importance: importance, IdentityID: "u1"}
	if err := s.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.PutEmbedding(ctx, &models.MemoryEmbedding{MemoryID: m.ID, Vector: vector, Model: "test", Dimension: len(vector)}); err != nil {
		t.Fatalf("put embedding: %v", err)
	}
	return m
}

// TestConsolidateMergesCluster reproduces §8 scenario 4: three memories at
// cosine ~0.9 to the first (the second and third share one vector) merge
// into one consolidated memory carrying max
// importance, and the originals are superseded.
func TestConsolidateMergesCluster(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := []float32{1, 0, 0}
	near := []float32{0.9, 0.436, 0} // cosine(v, near) ≈ 0.9
	m1 := createWithEmbedding(t, s, "memory one", 3, v)
	m2 := createWithEmbedding(t, s, "memory two", 7, near)
	m3 := createWithEmbedding(t, s, "memory three", 5, near)

	results, err := s.Consolidate(ctx, "u1", models.MemoryTypeFact, &fakeTextGenerator{text: "X"})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one cluster, got %d", len(results))
	}
	res := results[0]
	if res.NewMemory.Content != "X" {
		t.Fatalf("expected merged content %q, got %q", "X", res.NewMemory.Content)
	}
	if res.NewMemory.Importance != 7 {
		t.Fatalf("expected max importance 7, got %d", res.NewMemory.Importance)
	}
	if res.NewMemory.SourceType != models.MemorySourceConsolidated {
		t.Fatalf("expected source_type consolidated, got %q", res.NewMemory.SourceType)
	}
	if len(res.Absorbed) != 3 {
		t.Fatalf("expected 3 absorbed memories, got %d", len(res.Absorbed))
	}

	for _, original := range []*models.Memory{m1, m2, m3} {
		got, err := s.Get(ctx, original.ID)
		if err != nil {
			t.Fatalf("get original: %v", err)
		}
		if got.SupersededBy == nil || *got.SupersededBy != res.NewMemory.ID {
			t.Fatalf("expected %s to be superseded by the new memory", original.ID)
		}
		if got.Active(time.Now()) {
			t.Fatalf("expected %s to be excluded from active reads", original.ID)
		}
	}
}

func TestConsolidateSkipsSingletonClusters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createWithEmbedding(t, s, "lonely memory", 1, []float32{1, 0, 0})
	createWithEmbedding(t, s, "unrelated memory", 1, []float32{0, 1, 0})

	results, err := s.Consolidate(ctx, "u1", models.MemoryTypeFact, &fakeTextGenerator{text: "X"})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no clusters for unrelated memories, got %d", len(results))
	}
}

// TestDeduplicateTieBreaksByCreatedAt reproduces the §4.3 dedup tie-break:
// equal importance, earlier created_at wins.
func TestDeduplicateTieBreaksByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	older := createWithEmbedding(t, s, "older duplicate", 5, vec)
	time.Sleep(time.Millisecond * 5)
	newer := createWithEmbedding(t, s, "newer duplicate", 5, vec)

	pairs, err := s.Deduplicate(ctx, "u1", models.MemoryTypeFact, true)
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly one near-duplicate pair, got %d", len(pairs))
	}
	if pairs[0].Winner.ID != older.ID || pairs[0].Loser.ID != newer.ID {
		t.Fatalf("expected the older memory to win the tie, got winner=%s loser=%s", pairs[0].Winner.ID, pairs[0].Loser.ID)
	}
}

func TestDeduplicateDryRunDoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	vec := []float32{1, 0, 0}
	createWithEmbedding(t, s, "dup one", 5, vec)
	dup2 := createWithEmbedding(t, s, "dup two", 5, vec)

	if _, err := s.Deduplicate(ctx, "u1", models.MemoryTypeFact, true); err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	got, err := s.Get(ctx, dup2.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SupersededBy != nil {
		t.Fatalf("dry run must not mutate, but %s was superseded", dup2.ID)
	}
}
