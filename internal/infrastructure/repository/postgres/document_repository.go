package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	title TEXT NOT NULL,
	document_type TEXT,
	status TEXT NOT NULL,
	text_content TEXT NOT NULL DEFAULT '',
	pages JSONB,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_org ON documents(organization_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT ''
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var pagesJSON any
	if len(doc.Pages) > 0 {
		raw, err := json.Marshal(doc.Pages)
		if err != nil {
			return fmt.Errorf("marshal pages: %w", err)
		}
		pagesJSON = raw
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, organization_id, title, document_type, status, text_content, pages, chunk_count, token_count, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.OrganizationID, doc.Title, doc.DocumentType, string(doc.Status),
		doc.TextContent, pagesJSON, doc.ChunkCount, doc.TokenCount, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, organization_id, title, document_type, status, text_content, pages, chunk_count, token_count, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var docType sql.NullString
	var pagesRaw []byte
	var status string

	err := row.Scan(
		&doc.ID, &doc.OrganizationID, &doc.Title, &docType, &status,
		&doc.TextContent, &pagesRaw, &doc.ChunkCount, &doc.TokenCount, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "fetch document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if len(pagesRaw) > 0 {
		if err := json.Unmarshal(pagesRaw, &doc.Pages); err != nil {
			return nil, fmt.Errorf("unmarshal pages: %w", err)
		}
	}
	doc.DocumentType = docType.String
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) GetInfoByIDs(ctx context.Context, ids []string) (map[string]domain.DocumentInfo, error) {
	if len(ids) == 0 {
		return map[string]domain.DocumentInfo{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT id, title, document_type, status
FROM documents
WHERE id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query document info: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.DocumentInfo, len(ids))
	for rows.Next() {
		var info domain.DocumentInfo
		var docType sql.NullString
		var status string
		if err := rows.Scan(&info.ID, &info.Title, &docType, &status); err != nil {
			return nil, fmt.Errorf("scan document info: %w", err)
		}
		info.DocumentType = docType.String
		info.Status = domain.DocumentStatus(status)
		out[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document info: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) SearchLexical(ctx context.Context, orgID, query string, limit int) ([]domain.DocumentInfo, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, document_type, status
FROM documents
WHERE organization_id = $1
  AND status = $2
  AND (title ILIKE $3 OR text_content ILIKE $3)
ORDER BY updated_at DESC
LIMIT $4
`, orgID, string(domain.StatusIndexed), pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical document search: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentInfo
	for rows.Next() {
		var info domain.DocumentInfo
		var docType sql.NullString
		var status string
		if err := rows.Scan(&info.ID, &info.Title, &docType, &status); err != nil {
			return nil, fmt.Errorf("scan lexical match: %w", err)
		}
		info.DocumentType = docType.String
		info.Status = domain.DocumentStatus(status)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical matches: %w", err)
	}
	return out, nil
}

// MarkProcessing claims a document for indexing. Documents already being
// processed or already indexed are not reclaimed; the caller gets
// ErrConflict and must treat the delivery as a duplicate.
func (r *DocumentRepository) MarkProcessing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = '', updated_at = $3
WHERE id = $1 AND status NOT IN ($4, $5)
`, id, string(domain.StatusProcessing), time.Now().UTC(),
		string(domain.StatusProcessing), string(domain.StatusIndexed))
	if err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "mark document processing", fmt.Errorf("document %s not claimable", id))
	}
	return nil
}

func (r *DocumentRepository) MarkIndexed(ctx context.Context, id string, chunkCount, tokenCount int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, chunk_count = $3, token_count = $4, error_message = '', updated_at = $5
WHERE id = $1
`, id, string(domain.StatusIndexed), chunkCount, tokenCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document indexed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.StatusFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}
