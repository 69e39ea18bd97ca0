package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusIndexed    DocumentStatus = "INDEXED"
	StatusFailed     DocumentStatus = "FAILED"
)

// Document is the metadata record for one ingested document. The text is
// already extracted by the time it reaches this core; Pages is set when the
// extractor preserved page boundaries (PDFs).
type Document struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Title          string         `json:"title"`
	DocumentType   string         `json:"document_type,omitempty"`
	Status         DocumentStatus `json:"status"`
	TextContent    string         `json:"-"`
	Pages          []Page         `json:"-"`
	ChunkCount     int            `json:"chunk_count,omitempty"`
	TokenCount     int            `json:"token_count,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Page is one page of extracted text. PageNumber starts at 1.
type Page struct {
	Content    string `json:"content"`
	PageNumber int    `json:"page_number"`
}

// DocumentInfo is the slim projection used by search-time metadata lookups.
type DocumentInfo struct {
	ID           string
	Title        string
	DocumentType string
	Status       DocumentStatus
}

// RegisterDocumentInput carries everything needed to register extracted text
// for asynchronous indexing.
type RegisterDocumentInput struct {
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	DocumentType   string `json:"document_type"`
	Text           string `json:"text"`
	Pages          []Page `json:"pages,omitempty"`
}
