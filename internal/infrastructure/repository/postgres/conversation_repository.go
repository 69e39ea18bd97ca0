package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

// conversationTitleLimit bounds the title derived from the first message.
const conversationTitleLimit = 100

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	citations JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// EnsureConversation resolves the conversation id for one chat turn. An
// empty id starts a new conversation titled by the first message; a known
// id is touched, an unknown one is recreated so imported ids keep working.
func (r *ConversationRepository) EnsureConversation(ctx context.Context, orgID, conversationID, title string) (string, error) {
	now := time.Now().UTC()
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	titleRunes := []rune(title)
	if len(titleRunes) > conversationTitleLimit {
		title = string(titleRunes[:conversationTitleLimit])
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (id, organization_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
`, conversationID, orgID, title, now)
	if err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}
	return conversationID, nil
}

// ListRecentTurns returns the last limit turns in chronological order.
func (r *ConversationRepository) ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.ChatTurn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		newestFirst = append(newestFirst, domain.ChatTurn{Role: domain.ChatRole(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	turns := make([]domain.ChatTurn, len(newestFirst))
	for i, turn := range newestFirst {
		turns[len(newestFirst)-1-i] = turn
	}
	return turns, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message domain.ConversationMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	var citationsJSON any
	if len(message.Citations) > 0 {
		raw, err := json.Marshal(message.Citations)
		if err != nil {
			return fmt.Errorf("marshal citations: %w", err)
		}
		citationsJSON = raw
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, role, content, model, prompt_tokens, completion_tokens, citations, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		message.ID, message.ConversationID, string(message.Role), message.Content,
		message.Model, message.PromptTokens, message.CompletionTokens, citationsJSON, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
