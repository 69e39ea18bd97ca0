package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphaintel/knowledge-core/internal/config"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
	"github.com/alphaintel/knowledge-core/internal/core/usecase"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/chunking"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/llm/openai"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/queue/nats"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/repository/postgres"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/resilience"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/vector/memory"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/vector/pgvector"
)

// App wires configuration into the object graph shared by the api and
// worker binaries. Each binary picks the ports it needs.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue         ports.MessageQueue
	Documents     ports.DocumentStore
	Conversations ports.ConversationStore

	RegisterUC ports.DocumentRegistrar
	IndexUC    ports.DocumentIndexer
	SearchUC   ports.SearchService
	ChatUC     ports.ChatService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	if err := documents.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	conversations := postgres.NewConversationRepository(db)
	if err := conversations.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure conversation schema: %w", err)
	}
	organizations := postgres.NewOrganizationRepository(db)

	var passages ports.PassageStore
	switch cfg.VectorBackend {
	case "memory":
		passages = memory.NewStore()
	default:
		store := pgvector.NewStore(db, cfg.EmbeddingDimension)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure passage schema: %w", err)
		}
		passages = store
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openai.New(openai.Config{
		BaseURL:            cfg.OpenAIBaseURL,
		APIKey:             cfg.OpenAIAPIKey,
		EmbedModel:         cfg.OpenAIEmbedModel,
		EmbedRatePerSecond: cfg.EmbedRatePerSecond,
		EmbedBurst:         cfg.EmbedBurst,
	}, executor)

	chunker := chunking.NewSplitter(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens, true)

	registerUC := usecase.NewRegisterDocumentUseCase(documents, queue, logger)
	indexUC := usecase.NewIndexDocumentUseCase(documents, passages, llmClient, chunker, logger, cfg.IndexWorkers)
	searchUC := usecase.NewSearchUseCase(llmClient, passages, documents)
	chatUC := usecase.NewChatUseCase(searchUC, llmClient, conversations, organizations, logger, cfg.OpenAIChatModel)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:         queue,
		Documents:     documents,
		Conversations: conversations,

		RegisterUC: registerUC,
		IndexUC:    indexUC,
		SearchUC:   searchUC,
		ChatUC:     chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
