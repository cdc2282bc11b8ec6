// Package idempotency holds the check-then-act helpers shared by the dispatch
// trigger and the onboarding promoter. The application-level check only
// covers sequential retries; callers must back it with a store-level
// uniqueness constraint on the same key so concurrent callers converge too.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
)

// Outcome tells the caller whether its call produced the record.
type Outcome int

const (
	Created Outcome = iota + 1
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyKey = errors.New("idempotency key is empty")
	// ErrUnresolvedConflict is returned when an insert hit the uniqueness
	// constraint but the winning record could not be read back.
	ErrUnresolvedConflict = errors.New("duplicate key reported but record not found")
)

// NormalizeKey trims a natural key and upper-cases it, so "ord-1 " and "ORD-1"
// address the same record in every service.
func NormalizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", ErrEmptyKey
	}

	return key, nil
}

// Steps are the store operations CreateIfAbsent sequences.
type Steps[T any] struct {
	// Lookup returns the existing record and true, or false when absent.
	Lookup func(ctx context.Context) (T, bool, error)
	// Insert writes the new record and returns it as stored.
	Insert func(ctx context.Context) (T, error)
	// IsDuplicate classifies Insert errors caused by the uniqueness constraint.
	IsDuplicate func(err error) bool
}

// CreateIfAbsent looks the record up and inserts it only when missing.
// Losing an insert race is reported as AlreadyExists with the winner's record.
func CreateIfAbsent[T any](ctx context.Context, steps Steps[T]) (T, Outcome, error) {
	var zero T

	existing, found, err := steps.Lookup(ctx)
	if err != nil {
		return zero, 0, fmt.Errorf("lookup before insert: %w", err)
	}
	if found {
		return existing, AlreadyExists, nil
	}

	created, err := steps.Insert(ctx)
	if err == nil {
		return created, Created, nil
	}
	if steps.IsDuplicate == nil || !steps.IsDuplicate(err) {
		return zero, 0, fmt.Errorf("insert: %w", err)
	}

	winner, found, err := steps.Lookup(ctx)
	if err != nil {
		return zero, 0, fmt.Errorf("lookup after duplicate insert: %w", err)
	}
	if !found {
		return zero, 0, ErrUnresolvedConflict
	}

	return winner, AlreadyExists, nil
}

// IsPgUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func IsPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}

// IsMongoDuplicate reports a MongoDB duplicate key error (E11000).
func IsMongoDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
