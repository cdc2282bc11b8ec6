package dispatchsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/idispatchrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrDispatchNotFound = errors.New("dispatch not found")
	// ErrStoreUnavailable means the outcome of a create is unknown; the
	// trigger is idempotent so the caller should retry.
	ErrStoreUnavailable = errors.New("dispatch store unavailable")
	ErrCourierRequired  = errors.New("courier id is required")
	ErrForeignCourier   = errors.New("dispatch is assigned to another courier")
	ErrConcurrentUpdate = errors.New("dispatch changed concurrently")
)

const defaultListLimit = 50

type pusher interface {
	Push(ctx context.Context, orderRef string, status orderstatus.Status, actor orderstatus.Actor) error
}

// DispatchService manages dispatch records and their courier lifecycle.
type DispatchService struct {
	repo       idispatchrepo.IDispatchRepository
	events     ieventpublisher.IEventPublisher
	syncClient pusher
	defaults   dispatch.Defaults
	now        func() time.Time
}

// AdvanceResult is the outcome of a courier step.
type AdvanceResult struct {
	Record      dispatch.Record
	SyncWarning bool
}

// option is a function that configures the DispatchService.
type option func(*DispatchService)

// MustNewDispatchService creates a new DispatchService.
func MustNewDispatchService(opts ...option) *DispatchService {
	s := &DispatchService{
		defaults: dispatch.Defaults{DeliveryFee: 4900, EstimatedDeliveryTime: 35},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo == nil || s.syncClient == nil {
		panic("dispatchsvc: repository and sync client are required")
	}

	return s
}

// WithDispatchRepository sets the record store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatchRepository(repo idispatchrepo.IDispatchRepository) option {
	return func(s *DispatchService) {
		s.repo = repo
	}
}

// WithEventPublisher sets where lifecycle events go. Optional.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventPublisher(p ieventpublisher.IEventPublisher) option {
	return func(s *DispatchService) {
		s.events = p
	}
}

// WithSyncClient sets the client that pushes courier progress to the order-of-record.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSyncClient(c pusher) option {
	return func(s *DispatchService) {
		s.syncClient = c
	}
}

// WithDefaults sets the fee and ETA used when a snapshot leaves them zero.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDefaults(d dispatch.Defaults) option {
	return func(s *DispatchService) {
		s.defaults = d
	}
}

// CreateDispatchIfAbsent returns the one dispatch record for the snapshot's
// order, creating it on first call. A lost insert race counts as AlreadyExists.
func (s *DispatchService) CreateDispatchIfAbsent(
	ctx context.Context,
	snap dispatch.Snapshot,
) (*dispatch.Record, idempotency.Outcome, error) {
	ctx, span := otel.Tracer("dispatchsvc").Start(ctx, "DispatchService.CreateDispatchIfAbsent")
	defer span.End()

	ref, err := idempotency.NormalizeKey(snap.OrderRef)
	if err != nil {
		return nil, 0, err
	}
	snap.OrderRef = ref
	span.SetAttributes(attribute.String("order.ref", ref))

	rec, outcome, err := idempotency.CreateIfAbsent(ctx, idempotency.Steps[dispatch.Record]{
		Lookup: func(ctx context.Context) (dispatch.Record, bool, error) {
			existing, err := s.repo.GetByOrderRef(ctx, ref)
			if err != nil || existing == nil {
				return dispatch.Record{}, false, err
			}

			return *existing, true, nil
		},
		Insert: func(ctx context.Context) (dispatch.Record, error) {
			rec := dispatch.NewRecord(snap, s.defaults, s.now())
			err := s.repo.Create(ctx, &rec)

			return rec, err
		},
		IsDuplicate: idempotency.IsMongoDuplicate,
	})
	if err != nil {
		metrics.DispatchTriggerTotal.WithLabelValues("error").Inc()

		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	metrics.DispatchTriggerTotal.WithLabelValues(outcome.String()).Inc()

	if outcome == idempotency.Created {
		s.publish(ctx, rec)
	}

	return &rec, outcome, nil
}

// Get returns the record for an order.
func (s *DispatchService) Get(ctx context.Context, orderRef string) (*dispatch.Record, error) {
	ref, err := idempotency.NormalizeKey(orderRef)
	if err != nil {
		return nil, ErrDispatchNotFound
	}

	rec, err := s.repo.GetByOrderRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrDispatchNotFound
	}

	return rec, nil
}

// ListAvailable is the dispatcher pool: records nobody has accepted yet.
func (s *DispatchService) ListAvailable(ctx context.Context, q dispatch.QueryModel) ([]dispatch.Record, error) {
	q.Status = dispatch.StatusReadyForPickup
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}

	return s.repo.List(ctx, q)
}

// Accept assigns the record to a courier.
func (s *DispatchService) Accept(ctx context.Context, orderRef, courierID string) (*AdvanceResult, error) {
	return s.advance(ctx, orderRef, courierID, dispatch.StatusAccepted)
}

// PickUp marks the food collected; the order goes out for delivery.
func (s *DispatchService) PickUp(ctx context.Context, orderRef, courierID string) (*AdvanceResult, error) {
	return s.advance(ctx, orderRef, courierID, dispatch.StatusPickedUp)
}

// Deliver completes the dispatch and the order.
func (s *DispatchService) Deliver(ctx context.Context, orderRef, courierID string) (*AdvanceResult, error) {
	return s.advance(ctx, orderRef, courierID, dispatch.StatusDelivered)
}

func (s *DispatchService) advance(
	ctx context.Context,
	orderRef, courierID string,
	to dispatch.Status,
) (*AdvanceResult, error) {
	ctx, span := otel.Tracer("dispatchsvc").Start(ctx, "DispatchService.advance")
	defer span.End()
	span.SetAttributes(attribute.String("order.ref", orderRef), attribute.String("dispatch.status", string(to)))

	if courierID == "" {
		return nil, ErrCourierRequired
	}

	rec, err := s.Get(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	noop, err := dispatch.CheckTransition(rec.Status, to)
	if err != nil {
		return nil, err
	}
	if to != dispatch.StatusAccepted || noop {
		if rec.CourierID != courierID {
			return nil, ErrForeignCourier
		}
	}

	if !noop {
		now := s.now()
		moved, err := s.repo.Transition(ctx, rec.OrderRef, rec.Status, to, courierID, now)
		if err != nil {
			return nil, err
		}
		if !moved {
			current, err := s.Get(ctx, rec.OrderRef)
			if err != nil {
				return nil, err
			}
			if current.Status != to || current.CourierID != courierID {
				return nil, fmt.Errorf("%w: %s is %s", ErrConcurrentUpdate, rec.OrderRef, current.Status)
			}
			rec = current
		} else {
			applyTransition(rec, to, courierID, now)
			s.publish(ctx, *rec)
		}
	}

	result := &AdvanceResult{Record: *rec}
	if status, ok := orderStatusFor(to); ok {
		if err := s.syncClient.Push(ctx, rec.OrderRef, status, orderstatus.ActorCourier); err != nil {
			slog.Warn("Status push to order-of-record failed",
				"order_ref", rec.OrderRef,
				"attempted_status", status,
				"at", s.now().UTC(),
				"error", err,
			)
			result.SyncWarning = true
		}
	}

	return result, nil
}

// orderStatusFor maps courier steps that the order-of-record tracks.
func orderStatusFor(s dispatch.Status) (orderstatus.Status, bool) {
	switch s {
	case dispatch.StatusPickedUp:
		return orderstatus.OutForDelivery, true
	case dispatch.StatusDelivered:
		return orderstatus.Delivered, true
	default:
		return "", false
	}
}

func applyTransition(rec *dispatch.Record, to dispatch.Status, courierID string, at time.Time) {
	rec.Status = to
	rec.UpdatedAt = at
	switch to {
	case dispatch.StatusAccepted:
		rec.CourierID = courierID
		rec.AcceptedAt = &at
	case dispatch.StatusPickedUp:
		rec.PickedUpAt = &at
	case dispatch.StatusDelivered:
		rec.DeliveredAt = &at
	}
}

func (s *DispatchService) publish(ctx context.Context, rec dispatch.Record) {
	if s.events == nil {
		return
	}

	ev := dispatch.Event{
		Type:       dispatch.EventType(rec.Status),
		OrderRef:   rec.OrderRef,
		Status:     rec.Status,
		CourierID:  rec.CourierID,
		Record:     rec,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish dispatch event",
			"order_ref", rec.OrderRef,
			"event_type", ev.Type,
			"error", err,
		)
	}
}
