package memory

import (
	"context"
	"math"
	"testing"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()

	passages := []struct {
		org     string
		passage domain.Passage
	}{
		{"org-1", domain.Passage{ID: "p-1", DocumentID: "doc-a", Content: "north", ChunkIndex: 0, Embedding: []float32{1, 0}}},
		{"org-1", domain.Passage{ID: "p-2", DocumentID: "doc-a", Content: "diagonal", ChunkIndex: 1, Embedding: []float32{1, 1}}},
		{"org-1", domain.Passage{ID: "p-3", DocumentID: "doc-b", Content: "east", ChunkIndex: 0, Embedding: []float32{0, 1}}},
		{"org-2", domain.Passage{ID: "p-4", DocumentID: "doc-c", Content: "other tenant", ChunkIndex: 0, Embedding: []float32{1, 0}}},
	}
	for _, p := range passages {
		if err := s.InsertPassage(ctx, p.org, p.passage); err != nil {
			t.Fatalf("InsertPassage() error = %v", err)
		}
	}
	return s
}

func TestMatchRanksBySimilarity(t *testing.T) {
	s := seedStore(t)

	matches, err := s.Match(context.Background(), []float32{1, 0}, 10, "org-1")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].PassageID != "p-1" {
		t.Fatalf("expected exact match first, got %s", matches[0].PassageID)
	}
	if math.Abs(matches[0].Similarity-1.0) > 1e-9 {
		t.Fatalf("expected similarity 1.0, got %f", matches[0].Similarity)
	}
	if matches[1].PassageID != "p-2" {
		t.Fatalf("expected diagonal second, got %s", matches[1].PassageID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("matches not sorted desc at %d", i)
		}
	}
}

func TestMatchScopesToOrganization(t *testing.T) {
	s := seedStore(t)

	matches, err := s.Match(context.Background(), []float32{1, 0}, 10, "org-2")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(matches) != 1 || matches[0].PassageID != "p-4" {
		t.Fatalf("expected only org-2 passages, got %+v", matches)
	}
}

func TestMatchHonorsMatchCount(t *testing.T) {
	s := seedStore(t)

	matches, err := s.Match(context.Background(), []float32{1, 0}, 2, "org-1")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestMatchZeroVectorYieldsZeroSimilarity(t *testing.T) {
	s := seedStore(t)

	matches, err := s.Match(context.Background(), []float32{0, 0}, 10, "org-1")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	for _, m := range matches {
		if m.Similarity != 0 {
			t.Fatalf("zero query vector must yield similarity 0, got %f", m.Similarity)
		}
		if math.IsNaN(m.Similarity) {
			t.Fatal("similarity must never be NaN")
		}
	}
}

func TestFirstPassagesOrderedByChunkIndex(t *testing.T) {
	s := seedStore(t)

	passages, err := s.FirstPassages(context.Background(), "doc-a", 1)
	if err != nil {
		t.Fatalf("FirstPassages() error = %v", err)
	}
	if len(passages) != 1 || passages[0].ChunkIndex != 0 {
		t.Fatalf("expected first chunk only, got %+v", passages)
	}
}

func TestDeleteByDocument(t *testing.T) {
	s := seedStore(t)

	if err := s.DeleteByDocument(context.Background(), "doc-a"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	matches, err := s.Match(context.Background(), []float32{1, 0}, 10, "org-1")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentID != "doc-b" {
		t.Fatalf("expected doc-a passages removed, got %+v", matches)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero operand", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosineSimilarity() = %f, want %f", got, tc.want)
			}
		})
	}
}
