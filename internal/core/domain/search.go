package domain

// SearchResult is constructed per query and never persisted.
type SearchResult struct {
	PassageID     string  `json:"passage_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	PageNumber    int     `json:"page_number,omitempty"`
}

// SearchOptions tunes semantic search. Zero values fall back to the
// defaults: limit 10, threshold 0.7.
type SearchOptions struct {
	Limit        int
	Threshold    float64
	DocumentType string
}

// HybridOptions tunes hybrid search. Zero values fall back to the defaults:
// limit 10, threshold 0.5 (looser than semantic, since lexical matches
// backfill the list).
type HybridOptions struct {
	Limit     int
	Threshold float64
}

// KeywordSimilarity is the fixed score assigned to lexical-only hits in
// hybrid search.
const KeywordSimilarity = 0.5
