package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
)

// IOutboxRepository defines the interface for sync outbox operations.
type IOutboxRepository interface {
	// Enqueue upserts the pending push for orderRef and resets its retry counters
	Enqueue(ctx context.Context, orderRef string, status orderstatus.Status, maxRetries int, lastError string) error

	// GetPendingMessages retrieves messages that are ready for retry
	GetPendingMessages(ctx context.Context, limit int) ([]outbox.SyncMessage, error)

	// Delete removes a message after delivery unless a newer status replaced it
	Delete(ctx context.Context, id int64, status orderstatus.Status) error

	// DeleteByOrderRef removes any pending push for the order
	DeleteByOrderRef(ctx context.Context, orderRef string) error

	// UpdateRetry updates retry count and error information
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
	) error

	// Query lists outbox rows, dead letters included
	Query(ctx context.Context, filter outbox.QuerySyncMessagesModel) ([]outbox.SyncMessage, error)

	// Revive makes a row due immediately with a fresh retry budget
	Revive(ctx context.Context, orderRef string) (bool, error)
}
