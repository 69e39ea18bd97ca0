package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, type
FROM organizations
WHERE id = $1
`, id)

	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Type); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrOrganizationNotFound, "fetch organization", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	return &org, nil
}
