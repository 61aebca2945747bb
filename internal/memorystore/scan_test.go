package memorystore

import "testing"

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, -1, 2}
	got := cosineSimilarity(a, b)
	rev := cosineSimilarity(b, a)
	if got != rev {
		t.Fatalf("expected symmetry, got %v vs %v", got, rev)
	}
	if got < -1 || got > 1 {
		t.Fatalf("expected score in [-1,1], got %v", got)
	}
}

func TestCosineSimilarityIdenticalVectorIsOne(t *testing.T) {
	a := []float32{1, 2, 3}
	got := cosineSimilarity(a, a)
	if got < 0.999999 || got > 1.000001 {
		t.Fatalf("expected ~1 for identical vectors, got %v", got)
	}
}

func TestCosineSimilarityMismatchedLengthIsZero(t *testing.T) {
	if cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}) != 0 {
		t.Fatalf("expected 0 for mismatched lengths")
	}
}

func TestCosineSimilarityZeroNormIsZero(t *testing.T) {
	if cosineSimilarity([]float32{0, 0}, []float32{1, 2}) != 0 {
		t.Fatalf("expected 0 for a zero-norm vector")
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.0, 0}
	got := decodeEmbedding(encodeEmbedding(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestTagsRoundTrip(t *testing.T) {
	tags := []string{"a", "b", "c"}
	got := decodeTags(encodeTags(tags))
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected round trip: %v", got)
	}
	if decodeTags("") != nil {
		t.Fatalf("expected nil for empty tags")
	}
}
