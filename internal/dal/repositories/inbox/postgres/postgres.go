package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/inbox"
	"github.com/jmoiron/sqlx"
)

// InboxRepository keeps parked dispatch events in dispatch_inbox.
type InboxRepository struct {
	db *sqlx.DB
}

// NewInboxRepository creates a new inbox repository.
func NewInboxRepository(db *sqlx.DB) *InboxRepository {
	return &InboxRepository{
		db: db,
	}
}

// parkedRow is the column layout of dispatch_inbox; the event travels as JSONB.
type parkedRow struct {
	ID            int64     `db:"id"`
	MessageID     string    `db:"message_id"`
	OrderRef      string    `db:"order_ref"`
	EventType     string    `db:"event_type"`
	Event         []byte    `db:"event"`
	Attempts      int       `db:"attempts"`
	MaxAttempts   int       `db:"max_attempts"`
	LastError     string    `db:"last_error"`
	ParkedAt      time.Time `db:"parked_at"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
}

func toRow(p inbox.ParkedEvent) (parkedRow, error) {
	event, err := json.Marshal(p.Event)
	if err != nil {
		return parkedRow{}, fmt.Errorf("failed to encode dispatch event %s: %w", p.MessageID, err)
	}

	return parkedRow{
		ID:            p.ID,
		MessageID:     p.MessageID,
		OrderRef:      p.Event.OrderRef,
		EventType:     p.Event.Type,
		Event:         event,
		Attempts:      p.Attempts,
		MaxAttempts:   p.MaxAttempts,
		LastError:     p.LastError,
		ParkedAt:      p.ParkedAt,
		NextAttemptAt: p.NextAttemptAt,
	}, nil
}

func (r parkedRow) toModel() (inbox.ParkedEvent, error) {
	p := inbox.ParkedEvent{
		ID:            r.ID,
		MessageID:     r.MessageID,
		Attempts:      r.Attempts,
		MaxAttempts:   r.MaxAttempts,
		LastError:     r.LastError,
		ParkedAt:      r.ParkedAt,
		NextAttemptAt: r.NextAttemptAt,
	}
	if err := json.Unmarshal(r.Event, &p.Event); err != nil {
		return inbox.ParkedEvent{}, fmt.Errorf("failed to decode parked event %d: %w", r.ID, err)
	}

	return p, nil
}

// Park stores the event; a message id already parked is left as is.
func (r *InboxRepository) Park(ctx context.Context, p inbox.ParkedEvent) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO dispatch_inbox (
			message_id, order_ref, event_type, event, attempts, max_attempts, last_error, parked_at, next_attempt_at
		) VALUES (
			:message_id, :order_ref, :event_type, :event, :attempts, :max_attempts, :last_error, :parked_at, :next_attempt_at
		)
		ON CONFLICT (message_id) DO NOTHING`, row)
	if err != nil {
		return fmt.Errorf("failed to park dispatch event: %w", err)
	}

	return nil
}

// Due returns replayable events, oldest next attempt first.
func (r *InboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]inbox.ParkedEvent, error) {
	var rows []parkedRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, message_id, order_ref, event_type, event, attempts, max_attempts, last_error, parked_at, next_attempt_at
		FROM dispatch_inbox
		WHERE next_attempt_at <= $1 AND attempts < max_attempts
		ORDER BY next_attempt_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due dispatch events: %w", err)
	}

	events := make([]inbox.ParkedEvent, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, p)
	}

	return events, nil
}

// Delete removes a replayed event.
func (r *InboxRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dispatch_inbox WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete parked event: %w", err)
	}

	return nil
}

// Reschedule records a failed replay and the time of the next one.
func (r *InboxRepository) Reschedule(
	ctx context.Context,
	id int64,
	attempts int,
	lastError string,
	next time.Time,
) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_inbox
		SET attempts = $2, last_error = $3, next_attempt_at = $4
		WHERE id = $1`, id, attempts, lastError, next)
	if err != nil {
		return fmt.Errorf("failed to reschedule parked event: %w", err)
	}

	return nil
}
