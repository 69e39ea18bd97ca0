package usecase

import (
	"context"
	"testing"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

func indexableDocument() *domain.Document {
	return &domain.Document{
		ID:             "doc-1",
		OrganizationID: "org-1",
		Title:          "Market analysis",
		Status:         domain.StatusPending,
		TextContent:    "Plenty of meaningful text about the semiconductor market.",
	}
}

func threeChunks() []domain.Passage {
	return []domain.Passage{
		{Content: "chunk zero", ChunkIndex: 0, TokenCount: 3},
		{Content: "chunk one", ChunkIndex: 1, TokenCount: 3},
		{Content: "chunk two", ChunkIndex: 2, TokenCount: 3},
	}
}

func TestIndexHappyPath(t *testing.T) {
	docs := newDocumentStoreFake()
	docs.doc = indexableDocument()
	passages := &passageStoreFake{insertErr: map[int]error{}}
	embedder := &embedderFake{}
	uc := NewIndexDocumentUseCase(docs, passages, embedder, &chunkerFake{chunks: threeChunks()}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(passages.inserted) != 3 {
		t.Fatalf("expected 3 passages stored, got %d", len(passages.inserted))
	}
	if passages.insertOrg != "org-1" {
		t.Fatalf("expected org scope on insert, got %q", passages.insertOrg)
	}
	for _, p := range passages.inserted {
		if p.DocumentID != "doc-1" {
			t.Fatalf("passage missing document id: %+v", p)
		}
		if p.ID == "" {
			t.Fatal("passage missing generated id")
		}
		if len(p.Embedding) == 0 {
			t.Fatal("passage missing embedding")
		}
	}
	if len(docs.indexedCalls) != 1 {
		t.Fatalf("expected 1 MarkIndexed call, got %d", len(docs.indexedCalls))
	}
	call := docs.indexedCalls[0]
	if call.chunkCount != 3 || call.tokenCount != 9 {
		t.Fatalf("unexpected indexed counts: %+v", call)
	}
}

func TestIndexSkipsAlreadyClaimedDocument(t *testing.T) {
	docs := newDocumentStoreFake()
	docs.doc = indexableDocument()
	docs.processErr = domain.ErrConflict
	passages := &passageStoreFake{}
	uc := NewIndexDocumentUseCase(docs, passages, &embedderFake{}, &chunkerFake{chunks: threeChunks()}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("redelivery must be a no-op, got %v", err)
	}
	if len(passages.inserted) != 0 {
		t.Fatal("claimed document must not be reprocessed")
	}
}

func TestIndexFailsShortDocument(t *testing.T) {
	docs := newDocumentStoreFake()
	doc := indexableDocument()
	doc.TextContent = "  a b  \n"
	docs.doc = doc
	uc := NewIndexDocumentUseCase(docs, &passageStoreFake{}, &embedderFake{}, &chunkerFake{}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("terminal failure must not surface as a retryable error: %v", err)
	}
	if _, failed := docs.failedCalls["doc-1"]; !failed {
		t.Fatal("expected document marked FAILED")
	}
	if len(docs.indexedCalls) != 0 {
		t.Fatal("short document must not be marked INDEXED")
	}
}

func TestIndexToleratesSingleChunkEmbedFailure(t *testing.T) {
	docs := newDocumentStoreFake()
	docs.doc = indexableDocument()
	passages := &passageStoreFake{insertErr: map[int]error{}}
	embedder := &embedderFake{failOn: map[string]bool{"chunk one": true}}
	uc := NewIndexDocumentUseCase(docs, passages, embedder, &chunkerFake{chunks: threeChunks()}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages.inserted) != 2 {
		t.Fatalf("expected surviving chunks stored, got %d", len(passages.inserted))
	}
	if len(docs.indexedCalls) != 1 || docs.indexedCalls[0].chunkCount != 2 {
		t.Fatalf("expected INDEXED with 2 chunks, got %+v", docs.indexedCalls)
	}
}

func TestIndexToleratesSingleInsertFailure(t *testing.T) {
	docs := newDocumentStoreFake()
	docs.doc = indexableDocument()
	passages := &passageStoreFake{insertErr: map[int]error{1: errProvider}}
	uc := NewIndexDocumentUseCase(docs, passages, &embedderFake{}, &chunkerFake{chunks: threeChunks()}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs.indexedCalls) != 1 || docs.indexedCalls[0].chunkCount != 2 {
		t.Fatalf("expected INDEXED with 2 chunks, got %+v", docs.indexedCalls)
	}
}

func TestIndexFailsWhenEveryChunkFails(t *testing.T) {
	docs := newDocumentStoreFake()
	docs.doc = indexableDocument()
	embedder := &embedderFake{err: errProvider}
	uc := NewIndexDocumentUseCase(docs, &passageStoreFake{}, embedder, &chunkerFake{chunks: threeChunks()}, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("terminal failure must not surface as a retryable error: %v", err)
	}
	if _, failed := docs.failedCalls["doc-1"]; !failed {
		t.Fatal("expected document marked FAILED when nothing survives")
	}
}

func TestIndexUsesPagesWhenPresent(t *testing.T) {
	docs := newDocumentStoreFake()
	doc := indexableDocument()
	doc.TextContent = ""
	doc.Pages = []domain.Page{{PageNumber: 1, Content: "Pitch deck slide with enough text."}}
	docs.doc = doc
	passages := &passageStoreFake{}
	chunker := &chunkerFake{chunks: []domain.Passage{{Content: "slide text", ChunkIndex: 0, PageNumber: 1, TokenCount: 3}}}
	uc := NewIndexDocumentUseCase(docs, passages, &embedderFake{}, chunker, testLogger(), 2)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages.inserted) != 1 || passages.inserted[0].PageNumber != 1 {
		t.Fatalf("expected page number carried onto stored passage, got %+v", passages.inserted)
	}
}
