package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

type entry struct {
	orgID   string
	passage domain.Passage
}

// Store keeps passages in process memory. It backs development and tests;
// ranking semantics mirror the postgres store (cosine similarity, highest
// first).
type Store struct {
	mu      sync.RWMutex
	entries []entry
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) InsertPassage(_ context.Context, orgID string, passage domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{orgID: orgID, passage: passage})
	return nil
}

func (s *Store) Match(_ context.Context, embedding []float32, matchCount int, orgID string) ([]domain.PassageMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PassageMatch
	for _, e := range s.entries {
		if e.orgID != orgID {
			continue
		}
		out = append(out, domain.PassageMatch{
			PassageID:  e.passage.ID,
			DocumentID: e.passage.DocumentID,
			Content:    e.passage.Content,
			Similarity: cosineSimilarity(embedding, e.passage.Embedding),
			PageNumber: e.passage.PageNumber,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > matchCount {
		out = out[:matchCount]
	}
	return out, nil
}

func (s *Store) FirstPassages(_ context.Context, documentID string, limit int) ([]domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Passage
	for _, e := range s.entries {
		if e.passage.DocumentID == documentID {
			out = append(out, e.passage)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.passage.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// cosineSimilarity returns dot/(|a||b|). A zero-norm operand yields 0, not
// NaN, so unembeddable inputs rank last instead of poisoning the sort.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
