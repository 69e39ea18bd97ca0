package ports

import (
	"context"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

// EmbeddingProvider turns text into fixed-dimension vectors. Embed is the
// per-item path used by ingestion (isolates failures per chunk); EmbedBatch
// is the bulk path whose atomicity is per provider sub-batch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionStream is a lazy, single-pass, forward-only sequence of text
// increments. Recv returns io.EOF after the final increment.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionProvider answers an ordered list of chat turns.
type CompletionProvider interface {
	Complete(ctx context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (*domain.Completion, error)
	CompleteStream(ctx context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (CompletionStream, error)
}

// PassageStore persists passages with their vectors and performs
// nearest-passage lookup scoped to one organization.
type PassageStore interface {
	InsertPassage(ctx context.Context, orgID string, passage domain.Passage) error
	Match(ctx context.Context, embedding []float32, matchCount int, orgID string) ([]domain.PassageMatch, error)
	FirstPassages(ctx context.Context, documentID string, limit int) ([]domain.Passage, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentStore is the relational metadata store contract for documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetInfoByIDs(ctx context.Context, ids []string) (map[string]domain.DocumentInfo, error)
	SearchLexical(ctx context.Context, orgID, query string, limit int) ([]domain.DocumentInfo, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkIndexed(ctx context.Context, id string, chunkCount, tokenCount int) error
	MarkFailed(ctx context.Context, id, errMessage string) error
}

// OrganizationStore resolves tenant display metadata for prompt framing.
type OrganizationStore interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
}

// ConversationStore persists conversation turns. The chat orchestrator only
// reads a bounded recent window; appends happen around the orchestrator call.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, orgID, conversationID, title string) (string, error)
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
}

// MessageQueue carries document ids from registration to the indexing worker.
type MessageQueue interface {
	PublishDocumentRegistered(ctx context.Context, documentID string) error
	SubscribeDocumentRegistered(ctx context.Context, handler func(context.Context, string) error) error
}

// Chunker splits extracted text into bounded, overlapping passages.
type Chunker interface {
	Chunk(text string) []domain.Passage
	ChunkPages(pages []domain.Page) []domain.Passage
}
