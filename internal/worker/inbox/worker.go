package inbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iinboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/inbox"
	"github.com/spf13/viper"
)

// service represents the service layer interface.
type service interface {
	RecordDispatchEvent(ctx context.Context, messageID string, ev dispatch.Event) error
}

// Worker replays dispatch events the consumer could not record.
type Worker struct {
	inboxRepo    iinboxrepo.IInboxRepository
	service      service
	pollInterval time.Duration
	batchSize    int
	baseBackoff  time.Duration
	now          func() time.Time
	stopCh       chan struct{}
}

// NewWorker creates a new inbox worker.
func NewWorker(inboxRepo iinboxrepo.IInboxRepository, service service) *Worker {
	pollIntervalSeconds := viper.GetInt("inbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("inbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	backoffSeconds := viper.GetInt("inbox.base_backoff_seconds")
	if backoffSeconds == 0 {
		backoffSeconds = 30
	}

	return &Worker{
		inboxRepo:    inboxRepo,
		service:      service,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		baseBackoff:  time.Duration(backoffSeconds) * time.Second,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start begins processing messages from the inbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Inbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Inbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Inbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages replays due events once each.
func (w *Worker) processMessages(ctx context.Context) {
	parked, err := w.inboxRepo.Due(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to get due events from inbox", "error", err)

		return
	}

	if len(parked) == 0 {
		return
	}

	slog.Info("Replaying parked dispatch events", "count", len(parked))

	for _, p := range parked {
		w.replay(ctx, p)
	}
}

func (w *Worker) replay(ctx context.Context, p inbox.ParkedEvent) {
	err := w.service.RecordDispatchEvent(ctx, p.MessageID, p.Event)
	if err == nil || errors.Is(err, dispatch.ErrMalformedEvent) {
		if err != nil {
			slog.Warn("Discarding malformed parked event", "inbox_id", p.ID, "error", err)
		}
		if err := w.inboxRepo.Delete(ctx, p.ID); err != nil {
			slog.Error("Failed to delete event from inbox", "inbox_id", p.ID, "error", err)
		} else {
			slog.Info("Parked event replayed",
				"inbox_id", p.ID,
				"message_id", p.MessageID,
				"order_ref", p.Event.OrderRef,
			)
		}

		return
	}

	attempts := p.Attempts + 1
	next := w.now().Add(w.backoff(attempts))
	if attempts >= p.MaxAttempts {
		slog.Error("Parked event exhausted its replays",
			"inbox_id", p.ID,
			"order_ref", p.Event.OrderRef,
			"event_type", p.Event.Type,
			"attempts", attempts,
			"error", err,
		)
	} else {
		slog.Warn("Failed to replay parked event, will retry",
			"inbox_id", p.ID,
			"order_ref", p.Event.OrderRef,
			"attempts", attempts,
			"next_attempt", next,
			"error", err,
		)
	}

	if err := w.inboxRepo.Reschedule(ctx, p.ID, attempts, err.Error(), next); err != nil {
		slog.Error("Failed to reschedule parked event", "inbox_id", p.ID, "error", err)
	}
}

// maxBackoff caps the delay between replays of one parked event.
const maxBackoff = 24 * time.Hour

// backoff doubles per attempt: base, 2*base, 4*base... up to maxBackoff.
func (w *Worker) backoff(retryCount int) time.Duration {
	d := w.baseBackoff
	for i := 1; i < retryCount && d < maxBackoff; i++ {
		d *= 2
	}

	return min(d, maxBackoff)
}
