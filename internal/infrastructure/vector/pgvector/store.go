package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

// Store persists passages and their embeddings in postgres with the
// pgvector extension. Similarity queries use cosine distance, so the
// similarity handed back is 1 - (embedding <=> query).
type Store struct {
	db        *sql.DB
	dimension int
}

func NewStore(db *sql.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090103)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	content TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	page_number INTEGER NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passages_document ON passages(document_id, chunk_index);
CREATE INDEX IF NOT EXISTS idx_passages_org ON passages(organization_id);
`, s.dimension)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) InsertPassage(ctx context.Context, orgID string, passage domain.Passage) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO passages (id, document_id, organization_id, content, chunk_index, page_number, token_count, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		passage.ID, passage.DocumentID, orgID, passage.Content,
		passage.ChunkIndex, passage.PageNumber, passage.TokenCount,
		pgvector.NewVector(passage.Embedding),
	)
	if err != nil {
		return fmt.Errorf("insert passage: %w", err)
	}
	return nil
}

func (s *Store) Match(ctx context.Context, embedding []float32, matchCount int, orgID string) ([]domain.PassageMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, document_id, content, page_number, 1 - (embedding <=> $1) AS similarity
FROM passages
WHERE organization_id = $2
ORDER BY embedding <=> $1
LIMIT $3
`, pgvector.NewVector(embedding), orgID, matchCount)
	if err != nil {
		return nil, fmt.Errorf("match passages: %w", err)
	}
	defer rows.Close()

	var out []domain.PassageMatch
	for rows.Next() {
		var m domain.PassageMatch
		if err := rows.Scan(&m.PassageID, &m.DocumentID, &m.Content, &m.PageNumber, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan passage match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passage matches: %w", err)
	}
	return out, nil
}

func (s *Store) FirstPassages(ctx context.Context, documentID string, limit int) ([]domain.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, document_id, content, chunk_index, page_number, token_count
FROM passages
WHERE document_id = $1
ORDER BY chunk_index
LIMIT $2
`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query first passages: %w", err)
	}
	defer rows.Close()

	var out []domain.Passage
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Content, &p.ChunkIndex, &p.PageNumber, &p.TokenCount); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}
	return nil
}
