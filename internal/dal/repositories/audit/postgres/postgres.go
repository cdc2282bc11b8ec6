package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/jackc/pgx/v5"
)

// AuditRepository implements the dispatch audit repository for PostgreSQL.
type AuditRepository struct {
	pgClient *postgres.Client
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(pgClient *postgres.Client) *AuditRepository {
	return &AuditRepository{
		pgClient: pgClient,
	}
}

// Save inserts an entry; a redelivered message id is ignored.
func (r *AuditRepository) Save(ctx context.Context, entry auditlog.DispatchAuditEntry) (bool, error) {
	query, args, err := sq.Insert("dispatch_audit").
		Columns(
			"message_id",
			"order_ref",
			"event_type",
			"payload",
			"received_at",
		).
		Values(
			entry.MessageID,
			entry.OrderRef,
			entry.EventType,
			[]byte(entry.Payload),
			entry.ReceivedAt,
		).
		Suffix("ON CONFLICT (message_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build audit insert query: %w", err)
	}

	tag, err := r.pgClient.Pool().Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Query returns the feed newest first.
func (r *AuditRepository) Query(
	ctx context.Context,
	filter auditlog.QueryAuditModel,
) ([]auditlog.DispatchAuditEntry, error) {
	builder := sq.Select("id", "message_id", "order_ref", "event_type", "payload", "received_at").
		From("dispatch_audit").
		OrderBy("received_at DESC", "id DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.OrderRef != "" {
		builder = builder.Where(sq.Eq{"order_ref": filter.OrderRef})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit select query: %w", err)
	}

	rows, err := r.pgClient.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (auditlog.DispatchAuditEntry, error) {
		var (
			e       auditlog.DispatchAuditEntry
			payload []byte
		)
		err := row.Scan(&e.ID, &e.MessageID, &e.OrderRef, &e.EventType, &payload, &e.ReceivedAt)
		e.Payload = payload

		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entries: %w", err)
	}

	return entries, nil
}
