package auditsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// ErrMalformedEvent marks a message that can never be processed.
var ErrMalformedEvent = dispatch.ErrMalformedEvent

// AuditService records the dispatch event feed for the backoffice.
type AuditService struct {
	auditRepo iauditrepo.IAuditRepository
	now       func() time.Time
}

// option is a function that configures the AuditService.
type option func(*AuditService)

// MustNewAuditService creates a new AuditService.
func MustNewAuditService(opts ...option) *AuditService {
	s := &AuditService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditRepo == nil {
		panic("auditsvc: audit repository is required")
	}

	return s
}

// WithAuditRepository sets the audit repository for the AuditService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAuditRepository(auditRepo iauditrepo.IAuditRepository) option {
	return func(s *AuditService) {
		s.auditRepo = auditRepo
	}
}

// RecordDispatchEvent stores one event. A redelivered message id is
// accepted without writing a second row.
func (s *AuditService) RecordDispatchEvent(ctx context.Context, messageID string, ev dispatch.Event) error {
	ctx, span := otel.Tracer("auditsvc").Start(ctx, "AuditService.RecordDispatchEvent")
	defer span.End()

	if ev.OrderRef == "" || ev.Type == "" {
		return fmt.Errorf("%w: missing order reference or event type", ErrMalformedEvent)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if messageID == "" {
		messageID = ev.Key()
	}
	span.SetAttributes(
		attribute.String("message.id", messageID),
		attribute.String("order.ref", ev.OrderRef),
	)

	saved, err := s.auditRepo.Save(ctx, auditlog.DispatchAuditEntry{
		MessageID:  messageID,
		OrderRef:   ev.OrderRef,
		EventType:  ev.Type,
		Payload:    payload,
		ReceivedAt: s.now(),
	})
	if err != nil {
		return err
	}

	if !saved {
		slog.Info("Dispatch event already recorded", "message_id", messageID, "order_ref", ev.OrderRef)

		return nil
	}

	slog.Info("Dispatch event recorded",
		"message_id", messageID,
		"order_ref", ev.OrderRef,
		"event_type", ev.Type,
	)

	return nil
}

// Query returns the audit feed newest first.
func (s *AuditService) Query(
	ctx context.Context,
	filter auditlog.QueryAuditModel,
) ([]auditlog.DispatchAuditEntry, error) {
	if filter.OrderRef != "" {
		ref, err := idempotency.NormalizeKey(filter.OrderRef)
		if err != nil {
			return nil, err
		}
		filter.OrderRef = ref
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}
	if filter.Limit > maxQueryLimit {
		filter.Limit = maxQueryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.auditRepo.Query(ctx, filter)
}
