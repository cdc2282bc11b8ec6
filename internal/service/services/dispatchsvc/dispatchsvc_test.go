package dispatchsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestService(repo *fakeDispatchRepo, pub *fakePublisher, p *fakePusher) *DispatchService {
	return MustNewDispatchService(
		WithDispatchRepository(repo),
		WithEventPublisher(pub),
		WithSyncClient(p),
		WithDefaults(dispatch.Defaults{DeliveryFee: 4900, EstimatedDeliveryTime: 35}),
	)
}

func snapshot(ref string) dispatch.Snapshot {
	return dispatch.Snapshot{
		OrderRef:           ref,
		RestaurantName:     "Pelmeni",
		RestaurantLocation: "Nevsky 1",
		CustomerName:       "Alice",
		DeliveryAddress:    "Liteyny 5",
		OrderAmount:        1000,
	}
}

func TestDispatchService_CreateIsIdempotent(t *testing.T) {
	repo := newFakeDispatchRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, pub, &fakePusher{})
	ctx := context.Background()

	rec, outcome, err := svc.CreateDispatchIfAbsent(ctx, snapshot("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, idempotency.Created, outcome)
	assert.Equal(t, "ORD-1", rec.OrderRef)
	assert.Equal(t, dispatch.StatusReadyForPickup, rec.Status)
	assert.EqualValues(t, 4900, rec.DeliveryFee)
	assert.Equal(t, 35, rec.EstimatedDeliveryTime)

	again, outcome, err := svc.CreateDispatchIfAbsent(ctx, snapshot("ORD-1"))
	require.NoError(t, err)
	assert.Equal(t, idempotency.AlreadyExists, outcome)
	assert.Equal(t, rec.CreatedAt, again.CreatedAt)

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, []string{"dispatch.created"}, pub.types())
}

func TestDispatchService_ConcurrentCreateYieldsOneRecord(t *testing.T) {
	repo := newFakeDispatchRepo()
	repo.race(2)
	svc := newTestService(repo, &fakePublisher{}, &fakePusher{})

	outcomes := make([]idempotency.Outcome, 2)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range outcomes {
		i := i
		g.Go(func() error {
			_, outcome, err := svc.CreateDispatchIfAbsent(ctx, snapshot("ORD-2"))
			outcomes[i] = outcome

			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, repo.count())
	assert.ElementsMatch(t, []idempotency.Outcome{idempotency.Created, idempotency.AlreadyExists}, outcomes)
}

func TestDispatchService_CreateStoreFailure(t *testing.T) {
	repo := newFakeDispatchRepo()
	repo.CreateFunc = func(context.Context, *dispatch.Record) error {
		return errors.New("server selection timeout")
	}
	svc := newTestService(repo, &fakePublisher{}, &fakePusher{})

	_, _, err := svc.CreateDispatchIfAbsent(context.Background(), snapshot("ORD-3"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDispatchService_CourierLifecycle(t *testing.T) {
	repo := newFakeDispatchRepo()
	pub := &fakePublisher{}
	p := &fakePusher{}
	svc := newTestService(repo, pub, p)
	ctx := context.Background()

	_, _, err := svc.CreateDispatchIfAbsent(ctx, snapshot("ORD-1"))
	require.NoError(t, err)

	_, err = svc.PickUp(ctx, "ORD-1", "courier-1")
	assert.ErrorIs(t, err, dispatch.ErrTransitionRejected, "cannot skip acceptance")

	res, err := svc.Accept(ctx, "ORD-1", "courier-1")
	require.NoError(t, err)
	assert.Equal(t, "courier-1", res.Record.CourierID)
	assert.NotNil(t, res.Record.AcceptedAt)
	assert.Empty(t, p.calls)

	_, err = svc.Accept(ctx, "ORD-1", "courier-2")
	assert.ErrorIs(t, err, ErrForeignCourier)
	_, err = svc.PickUp(ctx, "ORD-1", "courier-2")
	assert.ErrorIs(t, err, ErrForeignCourier)

	res, err = svc.PickUp(ctx, "ORD-1", "courier-1")
	require.NoError(t, err)
	assert.False(t, res.SyncWarning)

	res, err = svc.Deliver(ctx, "ORD-1", "courier-1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDelivered, res.Record.Status)
	assert.NotNil(t, res.Record.DeliveredAt)

	assert.Equal(t, []pushCall{
		{Ref: "ORD-1", Status: orderstatus.OutForDelivery, Actor: orderstatus.ActorCourier},
		{Ref: "ORD-1", Status: orderstatus.Delivered, Actor: orderstatus.ActorCourier},
	}, p.calls)
	assert.Equal(t, []string{"dispatch.created", "dispatch.accepted", "dispatch.picked_up", "dispatch.delivered"}, pub.types())
}

func TestDispatchService_PushFailureIsAWarning(t *testing.T) {
	repo := newFakeDispatchRepo()
	p := &fakePusher{err: errors.New("timeout")}
	svc := newTestService(repo, &fakePublisher{}, p)
	ctx := context.Background()

	_, _, err := svc.CreateDispatchIfAbsent(ctx, snapshot("ORD-1"))
	require.NoError(t, err)
	_, err = svc.Accept(ctx, "ORD-1", "c1")
	require.NoError(t, err)

	res, err := svc.PickUp(ctx, "ORD-1", "c1")
	require.NoError(t, err)
	assert.True(t, res.SyncWarning)
	assert.Equal(t, dispatch.StatusPickedUp, res.Record.Status)

	// the courier repeats the step once the order-of-record is back
	p.err = nil
	res, err = svc.PickUp(ctx, "ORD-1", "c1")
	require.NoError(t, err)
	assert.False(t, res.SyncWarning)
	assert.Len(t, p.calls, 2)
}

func TestDispatchService_AdvanceErrors(t *testing.T) {
	svc := newTestService(newFakeDispatchRepo(), &fakePublisher{}, &fakePusher{})
	ctx := context.Background()

	_, err := svc.Accept(ctx, "ORD-404", "c1")
	assert.ErrorIs(t, err, ErrDispatchNotFound)

	_, err = svc.Accept(ctx, "ORD-404", "")
	assert.ErrorIs(t, err, ErrCourierRequired)
}
