package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

const (
	defaultChatSearchLimit = 5
	chatSearchThreshold    = 0.7
	chatHistoryWindow      = 10
	chatTemperature        = 0.7
	chatMaxTokens          = 2000
	snippetLength          = 200

	// fallbackOrganizationName frames the persona when the tenant row
	// cannot be resolved.
	fallbackOrganizationName = "investment"
)

// ChatUseCase orchestrates one retrieval-augmented conversational turn:
// recent history, tenant-scoped retrieval, a grounded system prompt, the
// completion call and the citation list derived from the retrieved passages.
type ChatUseCase struct {
	searcher      ports.SearchService
	completions   ports.CompletionProvider
	conversations ports.ConversationStore
	organizations ports.OrganizationStore
	logger        *slog.Logger
	defaultModel  string
}

func NewChatUseCase(
	searcher ports.SearchService,
	completions ports.CompletionProvider,
	conversations ports.ConversationStore,
	organizations ports.OrganizationStore,
	logger *slog.Logger,
	defaultModel string,
) *ChatUseCase {
	return &ChatUseCase{
		searcher:      searcher,
		completions:   completions,
		conversations: conversations,
		organizations: organizations,
		logger:        logger,
		defaultModel:  defaultModel,
	}
}

func (uc *ChatUseCase) Answer(ctx context.Context, message, conversationID, orgID string, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	turns, passages, model, err := uc.prepare(ctx, message, conversationID, orgID, opts)
	if err != nil {
		return nil, err
	}

	completion, err := uc.completions.Complete(ctx, turns, domain.CompletionOptions{
		Model:       model,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}

	return &domain.ChatResponse{
		Content:          completion.Content,
		Citations:        citationsFor(passages),
		Model:            model,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	}, nil
}

// AnswerStream resolves retrieval and citations eagerly, then hands the
// caller a forward-only token stream.
func (uc *ChatUseCase) AnswerStream(ctx context.Context, message, conversationID, orgID string, opts domain.ChatOptions) (*ports.ChatStream, error) {
	turns, passages, model, err := uc.prepare(ctx, message, conversationID, orgID, opts)
	if err != nil {
		return nil, err
	}

	stream, err := uc.completions.CompleteStream(ctx, turns, domain.CompletionOptions{
		Model:       model,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	return &ports.ChatStream{
		Citations: citationsFor(passages),
		Model:     model,
		Stream:    stream,
	}, nil
}

// prepare builds the ordered turn list [system, history..., user] shared by
// the blocking and streaming paths.
func (uc *ChatUseCase) prepare(ctx context.Context, message, conversationID, orgID string, opts domain.ChatOptions) ([]domain.ChatTurn, []domain.SearchResult, string, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil, "", domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("empty message"))
	}

	model := opts.Model
	if model == "" {
		model = uc.defaultModel
	}
	searchLimit := opts.SearchLimit
	if searchLimit <= 0 {
		searchLimit = defaultChatSearchLimit
	}

	history, err := uc.conversations.ListRecentTurns(ctx, conversationID, chatHistoryWindow)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load conversation history: %w", err)
	}

	orgName := fallbackOrganizationName
	if org, err := uc.organizations.GetByID(ctx, orgID); err == nil && org.Name != "" {
		orgName = org.Name
	} else if err != nil {
		uc.logger.Warn("organization lookup failed, using fallback name",
			slog.String("organization_id", orgID),
			slog.String("error", err.Error()),
		)
	}

	// Zero retrieved passages is not an error: the prompt is still built
	// and the model falls back to its general guidance.
	passages, err := uc.searcher.Search(ctx, message, orgID, domain.SearchOptions{
		Limit:     searchLimit,
		Threshold: chatSearchThreshold,
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("retrieve context: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(history)+2)
	turns = append(turns, domain.ChatTurn{
		Role:    domain.RoleSystem,
		Content: buildSystemPrompt(orgName, passages),
	})
	turns = append(turns, history...)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Content: message})

	return turns, passages, model, nil
}

func citationsFor(passages []domain.SearchResult) []domain.Citation {
	citations := make([]domain.Citation, 0, len(passages))
	for _, p := range passages {
		citations = append(citations, domain.Citation{
			PassageID:     p.PassageID,
			DocumentID:    p.DocumentID,
			DocumentTitle: p.DocumentTitle,
			Snippet:       snippetOf(p.Content),
			Similarity:    p.Similarity,
			PageNumber:    p.PageNumber,
		})
	}
	return citations
}
