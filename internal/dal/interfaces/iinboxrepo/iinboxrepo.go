package iinboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/inbox"
)

// IInboxRepository stores dispatch events parked for replay.
type IInboxRepository interface {
	// Park stores the event; a message id already parked is left as is.
	Park(ctx context.Context, p inbox.ParkedEvent) error

	// Due returns events whose next attempt is at or before now, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]inbox.ParkedEvent, error)

	// Delete removes a replayed event.
	Delete(ctx context.Context, id int64) error

	// Reschedule records a failed replay.
	Reschedule(ctx context.Context, id int64, attempts int, lastError string, next time.Time) error
}
