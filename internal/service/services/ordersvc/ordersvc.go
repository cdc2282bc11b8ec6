package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrConcurrentUpdate = errors.New("order status changed concurrently")
	ErrNotDispatchable  = errors.New("order is not ready for dispatch")
	// ErrDispatchFailed means the status was stored but the dispatch record
	// could not be confirmed. Repeating the request is safe.
	ErrDispatchFailed = errors.New("dispatch trigger failed")
)

type dispatcher interface {
	CreateDispatch(ctx context.Context, s dispatch.Snapshot) (*dispatch.Record, error)
}

type forwarder interface {
	Forward(ctx context.Context, o order.Order) error
	Mirror(ctx context.Context, orderRef string, status orderstatus.Status) error
}

// OrderService is the order-of-record.
type OrderService struct {
	orderRepo   iorderrepo.IOrderRepository
	dispatcher  dispatcher
	fulfillment forwarder
	now         func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.orderRepo == nil || s.dispatcher == nil {
		panic("ordersvc: order repository and dispatch client are required")
	}

	return s
}

// WithOrderRepository sets the order store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderRepository(repo iorderrepo.IOrderRepository) option {
	return func(s *OrderService) {
		s.orderRepo = repo
	}
}

// WithDispatchClient sets the client used by the dispatch trigger.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatchClient(d dispatcher) option {
	return func(s *OrderService) {
		s.dispatcher = d
	}
}

// WithFulfillmentClient sets where new orders are forwarded. Optional.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithFulfillmentClient(f forwarder) option {
	return func(s *OrderService) {
		s.fulfillment = f
	}
}

// Checkout stores a new pending order and forwards it to the restaurant side.
func (s *OrderService) Checkout(ctx context.Context, o order.Order) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.Checkout")
	defer span.End()

	now := s.now()
	o.Ref = "ORD-" + strings.ToUpper(uuid.NewString())
	o.Status = orderstatus.Pending
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.TotalCents == 0 {
		o.TotalCents = order.ItemsTotal(o.Items)
	}
	span.SetAttributes(attribute.String("order.ref", o.Ref))

	if err := s.orderRepo.Insert(ctx, o); err != nil {
		return nil, err
	}

	if s.fulfillment != nil {
		if err := s.fulfillment.Forward(ctx, o); err != nil {
			slog.Warn("Failed to forward order to fulfillment",
				"order_ref", o.Ref,
				"error", err,
			)
		}
	}

	return &o, nil
}

// GetOrder returns the stored order.
func (s *OrderService) GetOrder(ctx context.Context, ref string) (*order.Order, error) {
	ref, err := idempotency.NormalizeKey(ref)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	o, err := s.orderRepo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}

	return o, nil
}

// UpdateStatus is the sync target. The requested status is validated against
// the stored one and written with a compare-and-set. Reaching ready, including
// a repeated ready, fires the dispatch trigger; a trigger failure is returned
// as ErrDispatchFailed together with the committed order.
func (s *OrderService) UpdateStatus(
	ctx context.Context,
	ref string,
	requested orderstatus.Status,
	actor orderstatus.Actor,
) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.ref", ref),
		attribute.String("order.requested_status", requested.String()),
		attribute.String("actor", string(actor)),
	)

	o, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}

	decision, err := orderstatus.Validate(o.Status, requested, actor)
	if err != nil {
		metrics.TransitionRejectionsTotal.Inc()

		return nil, err
	}

	if decision == orderstatus.Allowed {
		now := s.now()
		updated, err := s.orderRepo.UpdateStatus(ctx, o.Ref, o.Status, requested, now)
		if err != nil {
			return nil, err
		}
		if !updated {
			// lost the race; identical concurrent requests converge
			current, err := s.GetOrder(ctx, o.Ref)
			if err != nil {
				return nil, err
			}
			if current.Status != requested {
				return nil, fmt.Errorf("%w: %s is now %s", ErrConcurrentUpdate, o.Ref, current.Status)
			}
			o = current
		} else {
			o.Status = requested
			o.UpdatedAt = now
			if actor != orderstatus.ActorRestaurant {
				s.mirror(ctx, o.Ref, o.Status)
			}
		}
	}

	if o.Status == orderstatus.Ready {
		if _, err := s.TriggerDispatch(ctx, *o); err != nil {
			return o, err
		}
	}

	return o, nil
}

// mirror tells the restaurant side about a change it did not make. The
// fulfillment reconciler catches up on its own when this is lost.
func (s *OrderService) mirror(ctx context.Context, ref string, status orderstatus.Status) {
	if s.fulfillment == nil {
		return
	}
	if err := s.fulfillment.Mirror(ctx, ref, status); err != nil {
		slog.Warn("Failed to mirror status to fulfillment",
			"order_ref", ref,
			"status", status,
			"error", err,
		)
	}
}

// Cancel is UpdateStatus to cancelled.
func (s *OrderService) Cancel(ctx context.Context, ref string, actor orderstatus.Actor) (*order.Order, error) {
	return s.UpdateStatus(ctx, ref, orderstatus.Cancelled, actor)
}

// TriggerDispatch asks the dispatch service for a record for o. It refuses
// any order not exactly in ready.
func (s *OrderService) TriggerDispatch(ctx context.Context, o order.Order) (*dispatch.Record, error) {
	if o.Status != orderstatus.Ready {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDispatchable, o.Ref, o.Status)
	}

	rec, err := s.dispatcher.CreateDispatch(ctx, SnapshotOf(o))
	if err != nil {
		metrics.DispatchTriggerTotal.WithLabelValues("failed").Inc()
		slog.Warn("Dispatch trigger failed",
			"order_ref", o.Ref,
			"error", err,
		)

		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	metrics.DispatchTriggerTotal.WithLabelValues("confirmed").Inc()

	return rec, nil
}

// SnapshotOf copies the delivery-relevant fields of an order. Fee and ETA are
// left for the dispatch service defaults.
func SnapshotOf(o order.Order) dispatch.Snapshot {
	return dispatch.Snapshot{
		OrderRef:           o.Ref,
		RestaurantName:     o.RestaurantName,
		RestaurantLocation: o.RestaurantAddress,
		CustomerName:       o.CustomerName,
		CustomerPhone:      o.CustomerPhone,
		DeliveryAddress:    o.DeliveryAddress,
		OrderAmount:        o.TotalCents,
	}
}
