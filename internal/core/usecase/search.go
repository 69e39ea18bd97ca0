package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

const (
	defaultSearchLimit     = 10
	defaultSearchThreshold = 0.7
	defaultHybridThreshold = 0.5
	similarDocsThreshold   = 0.6
	representativePassages = 3
	unknownDocumentTitle   = "Unknown"
	keywordMatchPrefix     = "Keyword match in: "
)

// SearchUseCase answers semantic, hybrid and similar-document queries over
// one organization's indexed passages.
type SearchUseCase struct {
	embedder  ports.EmbeddingProvider
	passages  ports.PassageStore
	documents ports.DocumentStore
}

func NewSearchUseCase(
	embedder ports.EmbeddingProvider,
	passages ports.PassageStore,
	documents ports.DocumentStore,
) *SearchUseCase {
	return &SearchUseCase{
		embedder:  embedder,
		passages:  passages,
		documents: documents,
	}
}

// Search embeds the query and returns passages above the similarity
// threshold, most similar first.
func (uc *SearchUseCase) Search(ctx context.Context, query, orgID string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "semantic search", errors.New("empty query"))
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultSearchThreshold
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return uc.matchAndRank(ctx, vector, orgID, opts, "")
}

// HybridSearch overlays a lexical substring match over semantic results.
// Documents found only lexically come back as synthetic results carrying a
// fixed similarity, so callers can still rank them against true matches.
func (uc *SearchUseCase) HybridSearch(ctx context.Context, query, orgID string, opts domain.HybridOptions) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid search", errors.New("empty query"))
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultHybridThreshold
	}

	semantic, err := uc.Search(ctx, query, orgID, domain.SearchOptions{
		Limit:     opts.Limit * 2,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return nil, err
	}

	lexical, err := uc.documents.SearchLexical(ctx, orgID, query, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	seen := make(map[string]bool, len(semantic))
	for _, r := range semantic {
		seen[r.DocumentID] = true
	}

	merged := semantic
	for _, doc := range lexical {
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		merged = append(merged, domain.SearchResult{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Content:       keywordMatchPrefix + doc.Title,
			Similarity:    domain.KeywordSimilarity,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// FindSimilar treats the first stored passages of a document as a
// representative query and returns close passages from other documents.
func (uc *SearchUseCase) FindSimilar(ctx context.Context, documentID, orgID string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	passages, err := uc.passages.FirstPassages(ctx, documentID, representativePassages)
	if err != nil {
		return nil, fmt.Errorf("load representative passages: %w", err)
	}
	if len(passages) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "find similar documents", errors.New("document has no indexed passages"))
	}

	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Content)
	}

	vector, err := uc.embedder.Embed(ctx, strings.Join(parts, "\n\n"))
	if err != nil {
		return nil, fmt.Errorf("embed representative text: %w", err)
	}

	results, err := uc.matchAndRank(ctx, vector, orgID, domain.SearchOptions{
		Limit:     limit,
		Threshold: similarDocsThreshold,
	}, documentID)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// matchAndRank is the shared tail of every vector query: overfetch from the
// store, resolve document metadata in one batch, filter and truncate.
// excludeDocumentID drops matches from one document (the similarity query's
// own source).
func (uc *SearchUseCase) matchAndRank(
	ctx context.Context,
	vector []float32,
	orgID string,
	opts domain.SearchOptions,
	excludeDocumentID string,
) ([]domain.SearchResult, error) {
	matches, err := uc.passages.Match(ctx, vector, opts.Limit*2, orgID)
	if err != nil {
		return nil, fmt.Errorf("match passages: %w", err)
	}
	if len(matches) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]string, 0, len(matches))
	idSet := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !idSet[m.DocumentID] {
			idSet[m.DocumentID] = true
			ids = append(ids, m.DocumentID)
		}
	}

	infos, err := uc.documents.GetInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve document metadata: %w", err)
	}

	results := make([]domain.SearchResult, 0, opts.Limit)
	for _, m := range matches {
		if m.Similarity < opts.Threshold {
			continue
		}
		if excludeDocumentID != "" && m.DocumentID == excludeDocumentID {
			continue
		}
		info, known := infos[m.DocumentID]
		if opts.DocumentType != "" && (!known || info.DocumentType != opts.DocumentType) {
			continue
		}
		title := unknownDocumentTitle
		if known && info.Title != "" {
			title = info.Title
		}
		results = append(results, domain.SearchResult{
			PassageID:     m.PassageID,
			DocumentID:    m.DocumentID,
			DocumentTitle: title,
			Content:       m.Content,
			Similarity:    m.Similarity,
			PageNumber:    m.PageNumber,
		})
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}
