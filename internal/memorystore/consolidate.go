package memorystore

import (
	"context"
	"fmt"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

const (
	consolidationThreshold = 0.85
	dedupThreshold         = 0.95
	maxConsolidationBatch  = 500
)

// TextGenerator is the LLM-merge step consolidation calls to produce one
// consolidated text per cluster; providers.AgentClient.GenerateText
// satisfies this.
type TextGenerator interface {
	GenerateText(ctx context.Context, system string, history []models.Message) (string, error)
}

type embeddedMemory struct {
	memory *models.Memory
	vector []float32
}

func (s *Store) loadEmbedded(ctx context.Context, filters models.MemorySearchFilters, limit int) ([]embeddedMemory, error) {
	if limit <= 0 || limit > maxConsolidationBatch {
		limit = maxConsolidationBatch
	}
	query := memorySelectColumns + `, e.embedding FROM memories m
		JOIN (SELECT memory_id, embedding FROM memory_embeddings) e ON e.memory_id = m.id
		WHERE 1=1 ` + activeClause() + filterClause(filters) + ` LIMIT ?`
	args := append(filterArgs(filters), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
	}
	defer rows.Close()

	var out []embeddedMemory
	for rows.Next() {
		m, blob, err := scanMemoryWithEmbedding(rows)
		if err != nil {
			return nil, apperrors.NewMemoryError(apperrors.MemoryConstraint, err)
		}
		out = append(out, embeddedMemory{memory: m, vector: decodeEmbedding(blob)})
	}
	return out, rows.Err()
}

// ConsolidationResult describes one cluster merged into a new memory.
type ConsolidationResult struct {
	NewMemory *models.Memory
	Absorbed  []string
}

// Consolidate runs the §4.3 single-pass agglomerative clustering pass:
// load embedded memories for identity/type, greedily absorb everything
// within cosine 0.85 of an unassigned seed, discard singleton clusters, and
// for every surviving cluster ask llm for a merged text, write a new
// consolidated memory, and supersede every original by it.
func (s *Store) Consolidate(ctx context.Context, identityID string, typeFilter models.MemoryType, llm TextGenerator) ([]ConsolidationResult, error) {
	filters := models.MemorySearchFilters{IdentityID: identityID, Type: typeFilter}
	items, err := s.loadEmbedded(ctx, filters, maxConsolidationBatch)
	if err != nil {
		return nil, err
	}

	clusters := clusterByThreshold(items, consolidationThreshold, false)

	var results []ConsolidationResult
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		mergedText, err := mergeClusterText(ctx, llm, cluster)
		if err != nil {
			return results, err
		}

		newMem := buildConsolidatedMemory(cluster, mergedText)
		if err := s.Create(ctx, newMem); err != nil {
			return results, err
		}

		absorbed := make([]string, 0, len(cluster))
		for _, em := range cluster {
			if err := s.Supersede(ctx, em.memory.ID, newMem.ID); err != nil {
				return results, err
			}
			absorbed = append(absorbed, em.memory.ID)
		}
		results = append(results, ConsolidationResult{NewMemory: newMem, Absorbed: absorbed})
	}
	return results, nil
}

// DedupPair is one near-duplicate pair found by Deduplicate.
type DedupPair struct {
	Winner *models.Memory
	Loser  *models.Memory
	Score  float64
}

// Deduplicate finds pairwise near-duplicates (cosine ≥ 0.95). The winner is
// argmax(importance), tie-broken by argmin(created_at). When dryRun is
// false, every loser is superseded by its winner.
func (s *Store) Deduplicate(ctx context.Context, identityID string, typeFilter models.MemoryType, dryRun bool) ([]DedupPair, error) {
	filters := models.MemorySearchFilters{IdentityID: identityID, Type: typeFilter}
	items, err := s.loadEmbedded(ctx, filters, maxConsolidationBatch)
	if err != nil {
		return nil, err
	}

	var pairs []DedupPair
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			score := cosineSimilarity(items[i].vector, items[j].vector)
			if score < dedupThreshold {
				continue
			}
			winner, loser := pickWinner(items[i].memory, items[j].memory)
			pairs = append(pairs, DedupPair{Winner: winner, Loser: loser, Score: score})
		}
	}

	if dryRun {
		return pairs, nil
	}
	for _, p := range pairs {
		if err := s.Supersede(ctx, p.Loser.ID, p.Winner.ID); err != nil {
			return pairs, err
		}
	}
	return pairs, nil
}

// pickWinner resolves the §4.3 dedup tie-break: higher importance wins;
// ties go to the earlier-created memory.
func pickWinner(a, b *models.Memory) (winner, loser *models.Memory) {
	if a.Importance != b.Importance {
		if a.Importance > b.Importance {
			return a, b
		}
		return b, a
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return a, b
	}
	return b, a
}

// clusterByThreshold performs single-pass agglomerative clustering: for
// each unassigned item, open a cluster and absorb every later unassigned
// item with cosine similarity to the seed ≥ threshold. pairwise is unused
// here (it distinguishes the seed-based clustering Consolidate wants from a
// fully pairwise pass) and kept only to document the distinction from
// Deduplicate's pairwise comparison.
func clusterByThreshold(items []embeddedMemory, threshold float64, _ bool) [][]embeddedMemory {
	assigned := make([]bool, len(items))
	var clusters [][]embeddedMemory
	for i := range items {
		if assigned[i] {
			continue
		}
		cluster := []embeddedMemory{items[i]}
		assigned[i] = true
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if cosineSimilarity(items[i].vector, items[j].vector) >= threshold {
				cluster = append(cluster, items[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

func mergeClusterText(ctx context.Context, llm TextGenerator, cluster []embeddedMemory) (string, error) {
	if llm == nil {
		return cluster[0].memory.Content, nil
	}
	system := "Merge these related memories into one concise consolidated statement. Output only the merged text."
	var body string
	for i, em := range cluster {
		body += fmt.Sprintf("%d. %s\n", i+1, em.memory.Content)
	}
	return llm.GenerateText(ctx, system, []models.Message{{Role: models.RoleUser, Content: body}})
}

func buildConsolidatedMemory(cluster []embeddedMemory, mergedText string) *models.Memory {
	first := cluster[0].memory
	maxImportance := first.Importance
	for _, em := range cluster[1:] {
		if em.memory.Importance > maxImportance {
			maxImportance = em.memory.Importance
		}
	}
	confidence := 1.0
	return &models.Memory{
		Type:       first.Type,
		Content:    mergedText,
		Category:   first.Category,
		Importance: maxImportance,
		IdentityID: first.IdentityID,
		SessionID:  first.SessionID,
		EntityType: first.EntityType,
		EntityName: first.EntityName,
		Confidence: &confidence,
		SourceType: models.MemorySourceConsolidated,
	}
}
