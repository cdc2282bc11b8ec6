package outbox

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

// SyncMessage is a status push that has not been acknowledged by the
// order-of-record service yet. There is at most one per order; a newer local
// status replaces the pending one.
type SyncMessage struct {
	ID          int64              `json:"id"`
	OrderRef    string             `json:"orderRef"`
	Status      orderstatus.Status `json:"status"`
	RetryCount  int                `json:"retryCount"`
	MaxRetries  int                `json:"maxRetries"`
	LastError   string             `json:"lastError"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	NextRetryAt time.Time          `json:"nextRetryAt"`
}

// Dead reports whether the reconciler gave up on the message.
func (m *SyncMessage) Dead() bool {
	return m.RetryCount >= m.MaxRetries
}

// QuerySyncMessagesModel represents filter parameters for listing the outbox.
type QuerySyncMessagesModel struct {
	OrderRef string `schema:"orderRef"`
	DeadOnly bool   `schema:"deadOnly"`
	Limit    int    `schema:"limit"`
	Offset   int    `schema:"offset"`
}
