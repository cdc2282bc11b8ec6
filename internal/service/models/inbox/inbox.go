package inbox

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
)

// ParkedEvent is a dispatch event whose audit write failed. The broker
// delivery was acked, so the row is the only remaining copy.
type ParkedEvent struct {
	ID            int64
	MessageID     string
	Event         dispatch.Event
	Attempts      int
	MaxAttempts   int
	LastError     string
	ParkedAt      time.Time
	NextAttemptAt time.Time
}

// Exhausted reports whether the replay worker has given up on the event.
func (p ParkedEvent) Exhausted() bool {
	return p.Attempts >= p.MaxAttempts
}
