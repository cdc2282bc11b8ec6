package auditlog

import (
	"encoding/json"
	"time"
)

// DispatchAuditEntry is one dispatch lifecycle event as seen by the backoffice.
type DispatchAuditEntry struct {
	ID         int64           `json:"id"         db:"id"`
	MessageID  string          `json:"messageId"  db:"message_id"`
	OrderRef   string          `json:"orderRef"   db:"order_ref"`
	EventType  string          `json:"eventType"  db:"event_type"`
	Payload    json.RawMessage `json:"payload"    db:"payload"`
	ReceivedAt time.Time       `json:"receivedAt" db:"received_at"`
}

// QueryAuditModel represents filter parameters for the audit feed.
type QueryAuditModel struct {
	OrderRef string `schema:"orderRef"`
	Limit    int    `schema:"limit"`
	Offset   int    `schema:"offset"`
}
