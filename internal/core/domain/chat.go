package domain

import "time"

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one turn of a conversation as sent to the completion provider.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Citation links part of an answer back to a specific passage. Snippet is at
// most 200 characters of passage content, ellipsis-terminated.
type Citation struct {
	PassageID     string  `json:"passage_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Snippet       string  `json:"snippet"`
	Similarity    float64 `json:"similarity"`
	PageNumber    int     `json:"page_number,omitempty"`
}

// ChatResponse is the grounded answer for one conversational turn.
type ChatResponse struct {
	Content          string     `json:"content"`
	Citations        []Citation `json:"citations"`
	Model            string     `json:"model"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
}

// ChatOptions tunes one RAG chat turn. Zero values fall back to the
// configured default model and a search limit of 5.
type ChatOptions struct {
	Model       string
	SearchLimit int
}

// CompletionOptions are passed through to the completion provider.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is the provider's non-streaming answer with token usage.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Organization frames prompts; resolved from the metadata store.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ConversationMessage is one persisted turn. Citations are only set on
// assistant turns and become immutable provenance once stored.
type ConversationMessage struct {
	ID               string     `json:"id"`
	ConversationID   string     `json:"conversation_id"`
	Role             ChatRole   `json:"role"`
	Content          string     `json:"content"`
	Model            string     `json:"model,omitempty"`
	PromptTokens     int        `json:"prompt_tokens,omitempty"`
	CompletionTokens int        `json:"completion_tokens,omitempty"`
	Citations        []Citation `json:"citations,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
