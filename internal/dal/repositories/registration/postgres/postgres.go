package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/jmoiron/sqlx"
)

// RegistrationRepository stores pending registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates a new registration repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{
		db: db,
	}
}

func (r *RegistrationRepository) Create(ctx context.Context, p registration.Pending) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO pending_registrations (
			id, owner_account_id, name, email, phone, address, cuisine, document_url, status_note, created_at, updated_at
		) VALUES (
			:id, :owner_account_id, :name, :email, :phone, :address, :cuisine, :document_url, :status_note, :created_at, :updated_at
		)`, p)
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	return nil
}

func (r *RegistrationRepository) Get(ctx context.Context, id string) (*registration.Pending, error) {
	var p registration.Pending
	err := r.db.GetContext(ctx, &p, `
		SELECT id, owner_account_id, name, email, phone, address, cuisine, document_url, status_note, created_at, updated_at
		FROM pending_registrations
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select registration: %w", err)
	}

	return &p, nil
}

func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_registrations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	return nil
}
