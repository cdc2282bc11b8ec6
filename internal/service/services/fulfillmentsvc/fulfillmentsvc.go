package fulfillmentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/irestaurantorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	outboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/outbox/postgres"
	restaurantorderrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/restaurantorder/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrForbidden        = errors.New("order belongs to another restaurant")
	ErrConcurrentUpdate = errors.New("order status changed concurrently")
	ErrNothingToSync    = errors.New("no sync message for order")
	// ErrSuperseded means the order-of-record had already moved the order on;
	// the local copy now holds the upstream status instead of the requested one.
	ErrSuperseded = errors.New("order status was changed upstream")
	// ErrUpstreamBehind means upstream holds an earlier status than the local copy.
	ErrUpstreamBehind = errors.New("order-of-record is behind the local copy")
	ErrDiverged       = errors.New("local copy and order-of-record cannot be reconciled")
)

const defaultListLimit = 100

type orderRecord interface {
	Push(ctx context.Context, orderRef string, status orderstatus.Status, actor orderstatus.Actor) error
	FetchStatus(ctx context.Context, orderRef string) (orderstatus.Status, error)
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	RestaurantOrderRepository() irestaurantorderrepo.IRestaurantOrderRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// FulfillmentService owns the restaurant copy of orders and keeps the
// order-of-record informed of every status the restaurant sets.
type FulfillmentService struct {
	orderRepo  irestaurantorderrepo.IRestaurantOrderRepository
	outboxRepo ioutboxrepo.IOutboxRepository
	newUOW     func() unitOfWork
	syncClient orderRecord
	maxRetries int
	now        func() time.Time
}

// UpdateResult is the outcome of a restaurant status change.
type UpdateResult struct {
	Order restaurantorder.Order
	// SyncWarning is set when the local change was stored but the
	// order-of-record has not acknowledged it yet.
	SyncWarning bool
}

// option is a function that configures the FulfillmentService.
type option func(*FulfillmentService)

// MustNewFulfillmentService creates a new FulfillmentService.
func MustNewFulfillmentService(opts ...option) *FulfillmentService {
	s := &FulfillmentService{
		maxRetries: 8,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.orderRepo == nil || s.outboxRepo == nil || s.newUOW == nil || s.syncClient == nil {
		panic("fulfillmentsvc: repositories, unit of work and sync client are required")
	}

	return s
}

// WithPostgresClient wires the Postgres-backed repositories and unit of work.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(client *postgres.Client) option {
	return func(s *FulfillmentService) {
		s.orderRepo = restaurantorderrepo.NewRestaurantOrderRepository(client.Pool())
		s.outboxRepo = outboxrepo.NewOutboxRepository(client.Pool())
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(client)
		}
	}
}

// WithSyncClient sets the client that pushes status to the order-of-record.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSyncClient(c orderRecord) option {
	return func(s *FulfillmentService) {
		s.syncClient = c
	}
}

// WithMaxRetries bounds reconciliation attempts per outbox row.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMaxRetries(n int) option {
	return func(s *FulfillmentService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// Intake stores an order forwarded by the storefront. Repeated intake of the
// same reference returns the stored copy untouched.
func (s *FulfillmentService) Intake(ctx context.Context, o order.Order) (*restaurantorder.Order, bool, error) {
	ref, err := idempotency.NormalizeKey(o.Ref)
	if err != nil {
		return nil, false, err
	}
	o.Ref = ref
	if !o.Status.Valid() {
		o.Status = orderstatus.Pending
	}

	local := restaurantorder.FromRecord(o)
	now := s.now()
	if local.CreatedAt.IsZero() {
		local.CreatedAt = now
	}
	local.UpdatedAt = now

	created, err := s.orderRepo.InsertIfAbsent(ctx, local)
	if err != nil {
		return nil, false, err
	}
	if created {
		return &local, true, nil
	}

	stored, err := s.orderRepo.Get(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("%w: %s vanished after intake conflict", ErrOrderNotFound, ref)
	}

	return stored, false, nil
}

// GetOrder returns the order if it belongs to restaurantID. An empty
// restaurantID skips the ownership check.
func (s *FulfillmentService) GetOrder(ctx context.Context, ref, restaurantID string) (*restaurantorder.Order, error) {
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
	if restaurantID != "" && o.RestaurantID != restaurantID {
		return nil, ErrForbidden
	}

	return o, nil
}

// UpdateStatus applies a restaurant status change locally first and then
// pushes it upstream once. A failed push never undoes the local change: the
// status is queued for the reconciler and the result carries SyncWarning.
func (s *FulfillmentService) UpdateStatus(
	ctx context.Context,
	ref, restaurantID string,
	requested orderstatus.Status,
) (*UpdateResult, error) {
	ctx, span := otel.Tracer("fulfillmentsvc").Start(ctx, "FulfillmentService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.ref", ref),
		attribute.String("order.requested_status", requested.String()),
	)

	o, err := s.GetOrder(ctx, ref, restaurantID)
	if err != nil {
		return nil, err
	}

	decision, err := orderstatus.Validate(o.Status, requested, orderstatus.ActorRestaurant)
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
			current, err := s.orderRepo.Get(ctx, o.Ref)
			if err != nil {
				return nil, err
			}
			if current == nil || current.Status != requested {
				return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, o.Ref)
			}
			o = current
		} else {
			o.Status = requested
			o.UpdatedAt = now
		}
	}

	if o.InSync() {
		return &UpdateResult{Order: *o}, nil
	}

	if err := s.syncClient.Push(ctx, o.Ref, o.Status, orderstatus.ActorRestaurant); err != nil {
		var pushErr *orderrecord.PushError
		if errors.As(err, &pushErr) && !pushErr.Retryable {
			converged, superseded, cerr := s.Converge(ctx, o.Ref)
			switch {
			case cerr != nil:
				slog.Warn("Failed to reconcile refused push with order-of-record",
					"order_ref", o.Ref,
					"attempted_status", o.Status,
					"error", cerr,
				)
			case superseded:
				return nil, fmt.Errorf("%w: %s is %s", ErrSuperseded, o.Ref, converged.Status)
			default:
				return &UpdateResult{Order: *converged}, nil
			}
		}
		s.deferPush(ctx, o.Ref, o.Status, err)

		return &UpdateResult{Order: *o, SyncWarning: true}, nil
	}

	syncedAt := s.now()
	if err := s.markSynced(ctx, o.Ref, o.Status, syncedAt, nil); err != nil {
		slog.Error("Failed to record acknowledged status",
			"order_ref", o.Ref,
			"status", o.Status,
			"error", err,
		)
	} else {
		o.SyncedStatus = o.Status
		o.SyncedAt = &syncedAt
	}

	return &UpdateResult{Order: *o}, nil
}

// deferPush queues a status whose push failed.
func (s *FulfillmentService) deferPush(ctx context.Context, ref string, status orderstatus.Status, pushErr error) {
	slog.Warn("Status push to order-of-record failed, queued for reconciliation",
		"order_ref", ref,
		"attempted_status", status,
		"at", s.now().UTC(),
		"error", pushErr,
	)

	if err := s.outboxRepo.Enqueue(ctx, ref, status, s.maxRetries, pushErr.Error()); err != nil {
		slog.Error("Failed to enqueue sync message",
			"order_ref", ref,
			"attempted_status", status,
			"error", err,
		)
	}
}

// CompleteSync records an acknowledged push by the reconciler and drops its
// outbox row, unless a newer status replaced the row meanwhile.
func (s *FulfillmentService) CompleteSync(ctx context.Context, msg outbox.SyncMessage) error {
	return s.markSynced(ctx, msg.OrderRef, msg.Status, s.now(), &msg)
}

func (s *FulfillmentService) markSynced(
	ctx context.Context,
	ref string,
	status orderstatus.Status,
	at time.Time,
	msg *outbox.SyncMessage,
) (err error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = work.Rollback(ctx)
		}
	}()

	if err := work.RestaurantOrderRepository().MarkSynced(ctx, ref, status, at); err != nil {
		return err
	}
	if msg != nil {
		err = work.OutboxRepository().Delete(ctx, msg.ID, msg.Status)
	} else {
		err = work.OutboxRepository().DeleteByOrderRef(ctx, ref)
	}
	if err != nil {
		return err
	}

	return work.Commit(ctx)
}

// ApplyUpstream brings the local copy in line with a status read from or
// announced by the order-of-record. An upstream status that is terminal or
// further along replaces the local one and reports superseded. An upstream
// status behind the local one is left alone and yields ErrUpstreamBehind.
func (s *FulfillmentService) ApplyUpstream(
	ctx context.Context,
	ref string,
	upstream orderstatus.Status,
) (*restaurantorder.Order, bool, error) {
	ref, err := idempotency.NormalizeKey(ref)
	if err != nil {
		return nil, false, ErrOrderNotFound
	}
	o, err := s.orderRepo.Get(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if o == nil {
		return nil, false, ErrOrderNotFound
	}

	now := s.now()
	switch {
	case upstream == o.Status:
		if o.InSync() {
			return o, false, nil
		}
		if err := s.markSynced(ctx, ref, o.Status, now, nil); err != nil {
			return nil, false, err
		}
		o.SyncedStatus = o.Status
		o.SyncedAt = &now

		return o, false, nil
	case orderstatus.Supersedes(upstream, o.Status):
		if err := s.adopt(ctx, ref, o.Status, upstream, now); err != nil {
			return nil, false, err
		}
		slog.Warn("Local order superseded by order-of-record",
			"order_ref", ref,
			"local_status", o.Status,
			"upstream_status", upstream,
		)
		metrics.UpstreamAdoptionsTotal.Inc()
		o.Status = upstream
		o.SyncedStatus = upstream
		o.SyncedAt = &now
		o.UpdatedAt = now

		return o, true, nil
	default:
		return o, false, fmt.Errorf("%w: %s is %s upstream, %s locally", ErrUpstreamBehind, ref, upstream, o.Status)
	}
}

// Converge is the answer to a push the order-of-record refused for good. It
// reads the authoritative status and either adopts it or, when upstream is
// behind, walks it forward one edge at a time to the local status.
func (s *FulfillmentService) Converge(ctx context.Context, ref string) (*restaurantorder.Order, bool, error) {
	ctx, span := otel.Tracer("fulfillmentsvc").Start(ctx, "FulfillmentService.Converge")
	defer span.End()
	span.SetAttributes(attribute.String("order.ref", ref))

	upstream, err := s.syncClient.FetchStatus(ctx, ref)
	if err != nil {
		return nil, false, err
	}

	o, superseded, err := s.ApplyUpstream(ctx, ref, upstream)
	if !errors.Is(err, ErrUpstreamBehind) {
		return o, superseded, err
	}

	steps := orderstatus.CatchUp(upstream, o.Status)
	if len(steps) == 0 {
		return nil, false, fmt.Errorf("%w: %s is %s upstream, %s locally", ErrDiverged, o.Ref, upstream, o.Status)
	}
	for _, step := range steps {
		if err := s.syncClient.Push(ctx, o.Ref, step, orderstatus.ActorRestaurant); err != nil {
			return nil, false, err
		}
	}

	now := s.now()
	if err := s.markSynced(ctx, o.Ref, o.Status, now, nil); err != nil {
		return nil, false, err
	}
	o.SyncedStatus = o.Status
	o.SyncedAt = &now

	return o, false, nil
}

func (s *FulfillmentService) adopt(
	ctx context.Context,
	ref string,
	from, upstream orderstatus.Status,
	at time.Time,
) (err error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = work.Rollback(ctx)
		}
	}()

	adopted, err := work.RestaurantOrderRepository().Adopt(ctx, ref, from, upstream, at)
	if err != nil {
		return err
	}
	if !adopted {
		return fmt.Errorf("%w: %s", ErrConcurrentUpdate, ref)
	}
	if err = work.OutboxRepository().DeleteByOrderRef(ctx, ref); err != nil {
		return err
	}

	return work.Commit(ctx)
}

// ListSyncFailures returns queued and dead-lettered pushes.
func (s *FulfillmentService) ListSyncFailures(
	ctx context.Context,
	filter outbox.QuerySyncMessagesModel,
) ([]outbox.SyncMessage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.OrderRef != "" {
		ref, err := idempotency.NormalizeKey(filter.OrderRef)
		if err != nil {
			return nil, err
		}
		filter.OrderRef = ref
	}

	messages, err := s.outboxRepo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []outbox.SyncMessage{}
	}

	return messages, nil
}

// RetrySync gives an order's queued push a fresh retry budget. An order that
// drifted without an outbox row is queued from its current status.
func (s *FulfillmentService) RetrySync(ctx context.Context, ref string) error {
	ref, err := idempotency.NormalizeKey(ref)
	if err != nil {
		return ErrNothingToSync
	}

	revived, err := s.outboxRepo.Revive(ctx, ref)
	if err != nil {
		return err
	}
	if revived {
		return nil
	}

	o, err := s.orderRepo.Get(ctx, ref)
	if err != nil {
		return err
	}
	if o == nil || o.InSync() {
		return ErrNothingToSync
	}

	return s.outboxRepo.Enqueue(ctx, ref, o.Status, s.maxRetries, "queued by operator")
}
