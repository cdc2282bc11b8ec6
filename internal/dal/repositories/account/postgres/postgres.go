package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// AccountRepository updates owner accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

// MarkApproved sets the approved flag; an unknown account is not an error.
func (r *AccountRepository) MarkApproved(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET approved = TRUE, updated_at = $2 WHERE id = $1`,
		accountID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark account approved: %w", err)
	}

	return nil
}
