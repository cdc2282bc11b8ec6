package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/jackc/pgx/v5"
)

var columns = []string{
	"id",
	"order_ref",
	"status",
	"retry_count",
	"max_retries",
	"last_error",
	"created_at",
	"updated_at",
	"next_retry_at",
}

// OutboxRepository implements the sync outbox repository for PostgreSQL.
type OutboxRepository struct {
	conn postgres.Querier
}

// NewOutboxRepository creates a new outbox repository over a pool or a transaction.
func NewOutboxRepository(conn postgres.Querier) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
	}
}

// Enqueue adds a pending push or replaces the one already queued for the order.
func (r *OutboxRepository) Enqueue(
	ctx context.Context,
	orderRef string,
	status orderstatus.Status,
	maxRetries int,
	lastError string,
) error {
	now := time.Now()
	query, args, err := sq.Insert("sync_outbox").
		Columns(
			"order_ref",
			"status",
			"retry_count",
			"max_retries",
			"last_error",
			"created_at",
			"updated_at",
			"next_retry_at",
		).
		Values(orderRef, status.String(), 0, maxRetries, lastError, now, now, now).
		Suffix(`ON CONFLICT (order_ref) DO UPDATE SET
			status = EXCLUDED.status,
			retry_count = 0,
			max_retries = EXCLUDED.max_retries,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at,
			next_retry_at = EXCLUDED.next_retry_at`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to enqueue sync message: %w", err)
	}

	return nil
}

// GetPendingMessages retrieves messages that are ready for retry.
func (r *OutboxRepository) GetPendingMessages(
	ctx context.Context,
	limit int,
) ([]outbox.SyncMessage, error) {
	query, args, err := sq.Select(columns...).
		From("sync_outbox").
		Where(sq.LtOrEq{"next_retry_at": time.Now()}).
		Where(sq.Expr("retry_count < max_retries")).
		OrderBy("next_retry_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return r.query(ctx, query, args)
}

// Delete removes a delivered message. A row whose status was replaced in the
// meantime is kept.
func (r *OutboxRepository) Delete(ctx context.Context, id int64, status orderstatus.Status) error {
	query, args, err := sq.Delete("sync_outbox").
		Where(sq.Eq{"id": id, "status": status.String()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete sync message: %w", err)
	}

	return nil
}

// DeleteByOrderRef drops whatever push is queued for the order.
func (r *OutboxRepository) DeleteByOrderRef(ctx context.Context, orderRef string) error {
	query, args, err := sq.Delete("sync_outbox").
		Where(sq.Eq{"order_ref": orderRef}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete sync message: %w", err)
	}

	return nil
}

// UpdateRetry updates retry count and error information.
func (r *OutboxRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	query, args, err := sq.Update("sync_outbox").
		Set("retry_count", retryCount).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync message: %w", err)
	}

	return nil
}

// Query lists outbox rows for operators.
func (r *OutboxRepository) Query(
	ctx context.Context,
	filter outbox.QuerySyncMessagesModel,
) ([]outbox.SyncMessage, error) {
	builder := sq.Select(columns...).
		From("sync_outbox").
		OrderBy("updated_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.OrderRef != "" {
		builder = builder.Where(sq.Eq{"order_ref": filter.OrderRef})
	}
	if filter.DeadOnly {
		builder = builder.Where(sq.Expr("retry_count >= max_retries"))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return r.query(ctx, query, args)
}

// Revive resets the retry budget of an order's row and makes it due now.
func (r *OutboxRepository) Revive(ctx context.Context, orderRef string) (bool, error) {
	now := time.Now()
	query, args, err := sq.Update("sync_outbox").
		Set("retry_count", 0).
		Set("next_retry_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"order_ref": orderRef}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to revive sync message: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *OutboxRepository) query(ctx context.Context, query string, args []any) ([]outbox.SyncMessage, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync messages: %w", err)
	}
	defer rows.Close()

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.SyncMessage, error) {
		var (
			msg    outbox.SyncMessage
			status string
		)
		err := row.Scan(
			&msg.ID,
			&msg.OrderRef,
			&status,
			&msg.RetryCount,
			&msg.MaxRetries,
			&msg.LastError,
			&msg.CreatedAt,
			&msg.UpdatedAt,
			&msg.NextRetryAt,
		)
		if err != nil {
			return msg, err
		}
		msg.Status, err = orderstatus.Parse(status)

		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync messages: %w", err)
	}

	return messages, nil
}
