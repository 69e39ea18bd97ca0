package domain

// Passage is a bounded contiguous slice of a document's text, the unit of
// embedding and retrieval. ChunkIndex is contiguous from 0 within a document
// and defines reading order. PageNumber is 0 when the source text had no page
// boundaries; real page numbers start at 1.
type Passage struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber int       `json:"page_number,omitempty"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
}

// PassageMatch is one nearest-neighbour hit from the passage store, ordered
// by descending similarity and scoped to a single organization.
type PassageMatch struct {
	PassageID  string
	DocumentID string
	Content    string
	Similarity float64
	PageNumber int
}
