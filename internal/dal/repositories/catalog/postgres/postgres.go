package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository stores live restaurants.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{
		db: db,
	}
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (*registration.CatalogEntry, error) {
	var e registration.CatalogEntry
	err := r.db.GetContext(ctx, &e, `
		SELECT id, owner_account_id, name, email, phone, address, cuisine, document_url,
			approved_at, approved_by, created_at, updated_at
		FROM restaurants
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select restaurant: %w", err)
	}

	return &e, nil
}

// Insert relies on the primary key to reject a second promotion of the same id.
func (r *CatalogRepository) Insert(ctx context.Context, e registration.CatalogEntry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO restaurants (
			id, owner_account_id, name, email, phone, address, cuisine, document_url,
			approved_at, approved_by, created_at, updated_at
		) VALUES (
			:id, :owner_account_id, :name, :email, :phone, :address, :cuisine, :document_url,
			:approved_at, :approved_by, :created_at, :updated_at
		)`, e)
	if err != nil {
		return fmt.Errorf("failed to insert restaurant: %w", err)
	}

	return nil
}
