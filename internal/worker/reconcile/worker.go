// Package reconcile re-pushes fulfillment status changes that the
// order-of-record has not acknowledged.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/irestaurantorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/spf13/viper"
)

type pusher interface {
	Push(ctx context.Context, orderRef string, status orderstatus.Status, actor orderstatus.Actor) error
}

// syncer records an acknowledged push and settles refused ones against the
// order-of-record.
type syncer interface {
	CompleteSync(ctx context.Context, msg outbox.SyncMessage) error
	Converge(ctx context.Context, ref string) (*restaurantorder.Order, bool, error)
}

// maxBackoff caps the delay between re-pushes of one row.
const maxBackoff = 24 * time.Hour

// Worker drains the sync outbox and queues orders that drifted without one.
type Worker struct {
	outboxRepo   ioutboxrepo.IOutboxRepository
	orderRepo    irestaurantorderrepo.IRestaurantOrderRepository
	pusher       pusher
	syncer       syncer
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	baseBackoff  time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	stopCh       chan struct{}
}

// NewWorker creates a new reconciliation worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	orderRepo irestaurantorderrepo.IRestaurantOrderRepository,
	pusher pusher,
	syncer syncer,
) *Worker {
	pollIntervalSeconds := viper.GetInt("reconcile.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("reconcile.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	maxRetries := viper.GetInt("reconcile.max_retries")
	if maxRetries == 0 {
		maxRetries = 8
	}

	backoffSeconds := viper.GetInt("reconcile.base_backoff_seconds")
	if backoffSeconds == 0 {
		backoffSeconds = 30
	}

	staleAfterSeconds := viper.GetInt("reconcile.stale_after_seconds")
	if staleAfterSeconds == 0 {
		staleAfterSeconds = 120
	}

	return &Worker{
		outboxRepo:   outboxRepo,
		orderRepo:    orderRepo,
		pusher:       pusher,
		syncer:       syncer,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		baseBackoff:  time.Duration(backoffSeconds) * time.Second,
		staleAfter:   time.Duration(staleAfterSeconds) * time.Second,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start runs a reconciliation pass every poll interval.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Reconcile worker started",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"max_retries", w.maxRetries,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reconcile worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Reconcile worker stopped")

			return
		case <-ticker.C:
			w.Reconcile(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// Reconcile runs one pass: sweep for drifted orders, then drain due rows.
func (w *Worker) Reconcile(ctx context.Context) {
	w.sweep(ctx)
	w.drain(ctx)
}

// sweep queues orders whose status was never acknowledged and that have no
// outbox row, e.g. because the process died between commit and enqueue.
func (w *Worker) sweep(ctx context.Context) {
	orders, err := w.orderRepo.ListUnsynced(ctx, w.now().Add(-w.staleAfter), w.batchSize)
	if err != nil {
		slog.Error("Failed to list unsynced orders", "error", err)

		return
	}

	for _, o := range orders {
		if err := w.outboxRepo.Enqueue(ctx, o.Ref, o.Status, w.maxRetries, "status not acknowledged upstream"); err != nil {
			slog.Error("Failed to queue drifted order", "order_ref", o.Ref, "error", err)

			continue
		}
		slog.Warn("Queued drifted order for re-push",
			"order_ref", o.Ref,
			"status", o.Status,
			"synced_status", o.SyncedStatus,
		)
	}
}

func (w *Worker) drain(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Re-pushing queued statuses", "count", len(messages))

	for _, msg := range messages {
		w.repush(ctx, msg)
	}
}

func (w *Worker) repush(ctx context.Context, msg outbox.SyncMessage) {
	err := w.pusher.Push(ctx, msg.OrderRef, msg.Status, orderstatus.ActorRestaurant)
	if err == nil {
		metrics.ReconcileAttemptsTotal.WithLabelValues("success").Inc()
		if err := w.syncer.CompleteSync(ctx, msg); err != nil {
			slog.Error("Failed to record acknowledged status",
				"outbox_id", msg.ID,
				"order_ref", msg.OrderRef,
				"error", err,
			)

			return
		}
		slog.Info("Queued status acknowledged upstream", "order_ref", msg.OrderRef, "status", msg.Status)

		return
	}

	newRetryCount := msg.RetryCount + 1
	var pushErr *orderrecord.PushError
	if errors.As(err, &pushErr) && !pushErr.Retryable {
		o, superseded, cerr := w.syncer.Converge(ctx, msg.OrderRef)
		if cerr == nil {
			metrics.ReconcileAttemptsTotal.WithLabelValues("converged").Inc()
			slog.Warn("Refused status settled against order-of-record",
				"order_ref", msg.OrderRef,
				"attempted_status", msg.Status,
				"status", o.Status,
				"superseded", superseded,
			)

			return
		}
		// upstream refused the status; retrying cannot change the answer
		newRetryCount = max(newRetryCount, msg.MaxRetries)
		err = errors.Join(err, cerr)
	}
	nextRetryAt := w.now().Add(w.backoff(msg.RetryCount))

	if newRetryCount >= msg.MaxRetries {
		metrics.ReconcileAttemptsTotal.WithLabelValues("dead_lettered").Inc()
		slog.Error("Status push dead-lettered",
			"outbox_id", msg.ID,
			"order_ref", msg.OrderRef,
			"attempted_status", msg.Status,
			"retry_count", newRetryCount,
			"error", err,
		)
	} else {
		metrics.ReconcileAttemptsTotal.WithLabelValues("failed").Inc()
		slog.Warn("Status re-push failed, will retry",
			"outbox_id", msg.ID,
			"order_ref", msg.OrderRef,
			"attempted_status", msg.Status,
			"retry_count", newRetryCount,
			"next_retry", nextRetryAt,
			"error", err,
		)
	}

	if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, err.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
	}
}

// backoff is base * 2^retryCount, capped at maxBackoff.
func (w *Worker) backoff(retryCount int) time.Duration {
	d := w.baseBackoff
	for i := 0; i < retryCount && d < maxBackoff; i++ {
		d *= 2
	}

	return min(d, maxBackoff)
}
