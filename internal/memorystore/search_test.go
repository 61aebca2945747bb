package memorystore

import "testing"

// TestFuseRRFMatchesScenario reproduces the literal §8 scenario 3: BM25
// ranks [A,B,C], vector ranks [C,D,A], k=60, limit=3, expecting order A,C,B.
func TestFuseRRFMatchesScenario(t *testing.T) {
	bm25 := []string{"A", "B", "C"}
	vector := []string{"C", "D", "A"}

	got := fuseRRF(bm25, vector, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	want := []string{"A", "C", "B"}
	for i, w := range want {
		if got[i].id != w {
			t.Fatalf("position %d: got %q want %q (full: %+v)", i, got[i].id, w, got)
		}
	}
}

func TestFuseRRFAbsentListContributesZero(t *testing.T) {
	got := fuseRRF([]string{"X"}, nil, 10)
	if len(got) != 1 || got[0].id != "X" {
		t.Fatalf("unexpected result: %+v", got)
	}
	wantScore := 1.0 / 61.0
	if got[0].score != wantScore {
		t.Fatalf("expected score %v, got %v", wantScore, got[0].score)
	}
	if got[0].vectorRank != nil {
		t.Fatalf("expected no vector rank contribution")
	}
}

func TestFuseRRFRespectsLimit(t *testing.T) {
	got := fuseRRF([]string{"A", "B", "C", "D"}, nil, 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
}
