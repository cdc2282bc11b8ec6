package ordersvc

import (
	"context"
	"sync"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]order.Order

	UpdateStatusFunc func(ctx context.Context, ref string, from, to orderstatus.Status, at time.Time) (bool, error)
}

func newFakeOrderRepo(orders ...order.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[string]order.Order{}}
	for _, o := range orders {
		r.orders[o.Ref] = o
	}

	return r
}

func (r *fakeOrderRepo) Insert(_ context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.Ref] = o

	return nil
}

func (r *fakeOrderRepo) Get(_ context.Context, ref string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[ref]
	if !ok {
		return nil, nil
	}

	return &o, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, ref string, from, to orderstatus.Status, at time.Time) (bool, error) {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, ref, from, to, at)
	}

	return r.cas(ref, from, to, at), nil
}

func (r *fakeOrderRepo) cas(ref string, from, to orderstatus.Status, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[ref]
	if !ok || o.Status != from {
		return false
	}
	o.Status = to
	o.UpdatedAt = at
	r.orders[ref] = o

	return true
}

func (r *fakeOrderRepo) status(ref string) orderstatus.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.orders[ref].Status
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatch.Snapshot
	err   error
}

func (d *fakeDispatcher) CreateDispatch(_ context.Context, s dispatch.Snapshot) (*dispatch.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, s)
	if d.err != nil {
		return nil, d.err
	}

	return &dispatch.Record{OrderRef: s.OrderRef, Status: dispatch.StatusReadyForPickup}, nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

type fakeForwarder struct {
	forwarded []order.Order
	mirrored  []string
	err       error
}

func (f *fakeForwarder) Forward(_ context.Context, o order.Order) error {
	f.forwarded = append(f.forwarded, o)

	return f.err
}

func (f *fakeForwarder) Mirror(_ context.Context, ref string, status orderstatus.Status) error {
	f.mirrored = append(f.mirrored, ref+"="+string(status))

	return f.err
}
