package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

// minMeaningfulChars is the smallest number of non-whitespace characters a
// document must carry to be worth indexing.
const minMeaningfulChars = 10

// IndexDocumentUseCase runs the asynchronous ingestion pipeline: claim the
// document, chunk it, embed and store every passage, then publish the final
// status. Individual chunk failures are logged and skipped; only a document
// that yields no passages at all is marked FAILED.
type IndexDocumentUseCase struct {
	documents ports.DocumentStore
	passages  ports.PassageStore
	embedder  ports.EmbeddingProvider
	chunker   ports.Chunker
	logger    *slog.Logger
	workers   int
}

func NewIndexDocumentUseCase(
	documents ports.DocumentStore,
	passages ports.PassageStore,
	embedder ports.EmbeddingProvider,
	chunker ports.Chunker,
	logger *slog.Logger,
	workers int,
) *IndexDocumentUseCase {
	if workers <= 0 {
		workers = 4
	}
	return &IndexDocumentUseCase{
		documents: documents,
		passages:  passages,
		embedder:  embedder,
		chunker:   chunker,
		logger:    logger,
		workers:   workers,
	}
}

func (uc *IndexDocumentUseCase) IndexByID(ctx context.Context, documentID string) error {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.documents.MarkProcessing(ctx, documentID); err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			// Already claimed or already indexed; a redelivered message must
			// not reprocess it.
			uc.logger.Info("skipping document in terminal or active state",
				slog.String("document_id", documentID),
			)
			return nil
		}
		return fmt.Errorf("set status=processing: %w", err)
	}

	// A failed earlier attempt may have left passages behind; each run
	// starts from a clean slate so stored passages always reflect exactly
	// one indexing pass.
	if err := uc.passages.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clear stale passages: %w", err)
	}

	if countMeaningful(doc.TextContent, doc.Pages) < minMeaningfulChars {
		return uc.fail(ctx, documentID, errors.New("document contains no meaningful text"))
	}

	var chunks []domain.Passage
	if len(doc.Pages) > 0 {
		chunks = uc.chunker.ChunkPages(doc.Pages)
	} else {
		chunks = uc.chunker.Chunk(doc.TextContent)
	}
	if len(chunks) == 0 {
		return uc.fail(ctx, documentID, errors.New("chunking produced zero passages"))
	}

	embedded := uc.embedChunks(ctx, documentID, chunks)

	inserted, tokens := 0, 0
	for _, passage := range embedded {
		if err := uc.passages.InsertPassage(ctx, doc.OrganizationID, passage); err != nil {
			uc.logger.Error("failed to store passage",
				slog.String("document_id", documentID),
				slog.Int("chunk_index", passage.ChunkIndex),
				slog.String("error", err.Error()),
			)
			continue
		}
		inserted++
		tokens += passage.TokenCount
	}

	if inserted == 0 {
		return uc.fail(ctx, documentID, errors.New("no passages could be embedded and stored"))
	}

	if err := uc.documents.MarkIndexed(ctx, documentID, inserted, tokens); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}

	uc.logger.Info("document indexed",
		slog.String("document_id", documentID),
		slog.Int("chunks", inserted),
		slog.Int("tokens", tokens),
	)
	return nil
}

// embedChunks embeds chunks concurrently, bounded by the worker count.
// A chunk whose embedding fails is dropped; the survivors come back in
// chunk order.
func (uc *IndexDocumentUseCase) embedChunks(ctx context.Context, documentID string, chunks []domain.Passage) []domain.Passage {
	type slot struct {
		passage domain.Passage
		ok      bool
	}

	slots := make([]slot, len(chunks))
	sem := make(chan struct{}, uc.workers)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk domain.Passage) {
			defer wg.Done()
			defer func() { <-sem }()

			vector, err := uc.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				uc.logger.Error("failed to embed passage",
					slog.String("document_id", documentID),
					slog.Int("chunk_index", chunk.ChunkIndex),
					slog.String("error", err.Error()),
				)
				return
			}
			chunk.ID = uuid.NewString()
			chunk.DocumentID = documentID
			chunk.Embedding = vector
			slots[i] = slot{passage: chunk, ok: true}
		}(i, chunk)
	}
	wg.Wait()

	out := make([]domain.Passage, 0, len(chunks))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.passage)
		}
	}
	return out
}

func (uc *IndexDocumentUseCase) fail(ctx context.Context, documentID string, cause error) error {
	uc.logger.Warn("document indexing failed",
		slog.String("document_id", documentID),
		slog.String("error", cause.Error()),
	)
	if err := uc.documents.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	// Terminal outcome; the message must not be redelivered.
	return nil
}

func countMeaningful(text string, pages []domain.Page) int {
	count := meaningfulIn(text)
	for _, page := range pages {
		count += meaningfulIn(page.Content)
	}
	return count
}

func meaningfulIn(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
