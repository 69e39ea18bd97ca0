package ports

import (
	"context"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

// DocumentRegistrar accepts already-extracted text and queues it for indexing.
type DocumentRegistrar interface {
	Register(ctx context.Context, input domain.RegisterDocumentInput) (*domain.Document, error)
}

// DocumentIndexer is the asynchronous ingestion write path.
type DocumentIndexer interface {
	IndexByID(ctx context.Context, documentID string) error
}

// SearchService is the inbound contract for ranked passage retrieval.
type SearchService interface {
	Search(ctx context.Context, query, orgID string, opts domain.SearchOptions) ([]domain.SearchResult, error)
	HybridSearch(ctx context.Context, query, orgID string, opts domain.HybridOptions) ([]domain.SearchResult, error)
	FindSimilar(ctx context.Context, documentID, orgID string, limit int) ([]domain.SearchResult, error)
}

// ChatStream pairs eagerly computed citations with a lazy token stream.
type ChatStream struct {
	Citations []domain.Citation
	Model     string
	Stream    CompletionStream
}

// ChatService is the inbound contract for retrieval-augmented chat.
type ChatService interface {
	Answer(ctx context.Context, message, conversationID, orgID string, opts domain.ChatOptions) (*domain.ChatResponse, error)
	AnswerStream(ctx context.Context, message, conversationID, orgID string, opts domain.ChatOptions) (*ChatStream, error)
}
