package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

// RegisterDocumentUseCase accepts extracted text, records it as PENDING and
// hands the id to the indexing queue. Extraction itself happens upstream.
type RegisterDocumentUseCase struct {
	documents ports.DocumentStore
	queue     ports.MessageQueue
	logger    *slog.Logger
}

func NewRegisterDocumentUseCase(
	documents ports.DocumentStore,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *RegisterDocumentUseCase {
	return &RegisterDocumentUseCase{
		documents: documents,
		queue:     queue,
		logger:    logger,
	}
}

func (uc *RegisterDocumentUseCase) Register(ctx context.Context, input domain.RegisterDocumentInput) (*domain.Document, error) {
	if strings.TrimSpace(input.OrganizationID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register document", errors.New("missing organization id"))
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register document", errors.New("missing title"))
	}
	if strings.TrimSpace(input.Text) == "" && len(input.Pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register document", errors.New("missing text content"))
	}

	doc := &domain.Document{
		ID:             uuid.NewString(),
		OrganizationID: input.OrganizationID,
		Title:          input.Title,
		DocumentType:   input.DocumentType,
		Status:         domain.StatusPending,
		TextContent:    input.Text,
		Pages:          input.Pages,
	}

	if err := uc.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentRegistered(ctx, doc.ID); err != nil {
		// The record stays PENDING; a requeue or manual reindex can pick it
		// up later, so registration itself still succeeds.
		uc.logger.Error("failed to enqueue document for indexing",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}

	uc.logger.Info("document registered",
		slog.String("document_id", doc.ID),
		slog.String("organization_id", doc.OrganizationID),
		slog.String("title", doc.Title),
	)

	return doc, nil
}
