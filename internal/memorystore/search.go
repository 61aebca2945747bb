package memorystore

import (
	"context"
	"sort"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// rrfK is the Reciprocal Rank Fusion constant from §4.3: score(m) = Σ 1/(k+rank_i(m)).
const rrfK = 60

// Embedder produces a query (or memory) embedding. Hybrid search degrades
// gracefully when it is nil or returns an error, falling back to BM25-only.
// Consolidation does not use an Embedder: it clusters the vectors already
// stored through PutEmbedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HybridSearch runs the §4.3 pipeline: BM25 over the FTS index, an optional
// linear-scan cosine pass over the embedding table (capped at 1000 rows),
// merged by Reciprocal Rank Fusion. With embedder nil or a failing Embed
// call, the result degrades to pure BM25 order.
func (s *Store) HybridSearch(ctx context.Context, query string, filters models.MemorySearchFilters, limit int, embedder Embedder) ([]models.MemorySearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	fetch := 2 * limit

	bm25Ranked, err := s.bm25Search(ctx, query, filters, fetch)
	if err != nil {
		return nil, err
	}

	var vectorRanked []vectorHit
	if embedder != nil {
		if qvec, err := embedder.Embed(ctx, query); err == nil && len(qvec) > 0 {
			vectorRanked, err = s.vectorSearch(ctx, qvec, filters, fetch)
			if err != nil {
				vectorRanked = nil
			}
		}
	}

	if len(vectorRanked) == 0 {
		// Pure BM25: already ordered, monotonic in negative-BM25 rank.
		n := limit
		if n > len(bm25Ranked) {
			n = len(bm25Ranked)
		}
		out := make([]models.MemorySearchResult, 0, n)
		for i, hit := range bm25Ranked {
			if i >= limit {
				break
			}
			rank := i + 1
			out = append(out, models.MemorySearchResult{Memory: hit.memory, Score: 1.0 / float64(rrfK+rank), BM25Rank: &rank})
		}
		return out, nil
	}

	bm25IDs := make([]string, len(bm25Ranked))
	memByID := make(map[string]*models.Memory, len(bm25Ranked))
	for i, hit := range bm25Ranked {
		bm25IDs[i] = hit.memory.ID
		memByID[hit.memory.ID] = hit.memory
	}
	vectorIDs := make([]string, len(vectorRanked))
	for i, hit := range vectorRanked {
		vectorIDs[i] = hit.memoryID
	}

	fusedRanks := fuseRRF(bm25IDs, vectorIDs, limit)

	out := make([]models.MemorySearchResult, 0, len(fusedRanks))
	for _, fr := range fusedRanks {
		m, ok := memByID[fr.id]
		if !ok {
			fetched, err := s.Get(ctx, fr.id)
			if err != nil {
				continue // materialize-by-id failure: drop, don't fail the whole search
			}
			m = fetched
		}
		out = append(out, models.MemorySearchResult{Memory: m, Score: fr.score, BM25Rank: fr.bm25Rank, VectorRank: fr.vectorRank})
	}
	return out, nil
}

type fusedRank struct {
	id         string
	score      float64
	bm25Rank   *int
	vectorRank *int
}

// fuseRRF merges two rank-ordered id lists by Reciprocal Rank Fusion
// (score = Σ 1/(k+rank)) and returns the top `limit` by descending score,
// ties broken by first appearance in bm25Ids then vectorIds for
// determinism. An id absent from one list contributes zero from it.
func fuseRRF(bm25Ids, vectorIds []string, limit int) []fusedRank {
	byID := make(map[string]*fusedRank)
	order := make([]string, 0, len(bm25Ids)+len(vectorIds))

	for i, id := range bm25Ids {
		rank := i + 1
		r := rank
		byID[id] = &fusedRank{id: id, score: 1.0 / float64(rrfK+rank), bm25Rank: &r}
		order = append(order, id)
	}
	for i, id := range vectorIds {
		rank := i + 1
		contribution := 1.0 / float64(rrfK+rank)
		if f, ok := byID[id]; ok {
			f.score += contribution
			r := rank
			f.vectorRank = &r
			continue
		}
		r := rank
		byID[id] = &fusedRank{id: id, score: contribution, vectorRank: &r}
		order = append(order, id)
	}

	all := make([]fusedRank, len(order))
	for i, id := range order {
		all[i] = *byID[id]
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

type bm25Hit struct{ memory *models.Memory }

func (s *Store) bm25Search(ctx context.Context, query string, filters models.MemorySearchFilters, limit int) ([]bm25Hit, error) {
	sqlQuery := memorySelectColumns + ` FROM memories m
		JOIN (SELECT id AS fts_id, bm25(memories_fts) AS fts_rank
			FROM memories_fts WHERE memories_fts MATCH ?) f ON f.fts_id = m.id
		WHERE 1=1 ` + activeClause() + filterClause(filters) + `
		ORDER BY f.fts_rank LIMIT ?`
	args := append([]any{query}, filterArgs(filters)...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	defer rows.Close()

	var out []bm25Hit
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
		}
		out = append(out, bm25Hit{memory: m})
	}
	return out, rows.Err()
}

type vectorHit struct {
	memoryID string
	score    float64
}

// vectorSearch linear-scans the embedding table, capped at 1000 rows after
// applying the identity/type filter, and returns the top `limit` by cosine
// similarity. This is the spec's explicit non-goal boundary: no ANN index.
func (s *Store) vectorSearch(ctx context.Context, query []float32, filters models.MemorySearchFilters, limit int) ([]vectorHit, error) {
	const scanCap = 1000
	sqlQuery := `SELECT e.memory_id, e.embedding FROM memory_embeddings e
		JOIN memories m ON m.id = e.memory_id
		WHERE 1=1 ` + activeClause() + filterClause(filters) + ` LIMIT ?`
	args := append(filterArgs(filters), scanCap)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	defer rows.Close()

	var hits []vectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
		}
		hits = append(hits, vectorHit{memoryID: id, score: cosineSimilarity(query, decodeEmbedding(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// activeClause enforces the §4.3 universal predicate: superseded_by IS NULL
// and, when set, the valid_from/valid_until window contains now.
func activeClause() string {
	return ` AND m.superseded_by IS NULL
		AND (m.valid_from IS NULL OR m.valid_from <= ` + sqliteNow() + `)
		AND (m.valid_until IS NULL OR m.valid_until >= ` + sqliteNow() + `) `
}

func sqliteNow() string { return `datetime('now')` }

func filterClause(f models.MemorySearchFilters) string {
	clause := ""
	if f.IdentityID != "" {
		clause += " AND m.identity_id = ? "
	}
	if f.Type != "" {
		clause += " AND m.type = ? "
	}
	if f.SessionID != "" {
		clause += " AND m.session_id = ? "
	}
	return clause
}

func filterArgs(f models.MemorySearchFilters) []any {
	var args []any
	if f.IdentityID != "" {
		args = append(args, f.IdentityID)
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
	}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
	}
	return args
}

