package fulfillmentsvc

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/irestaurantorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]restaurantorder.Order

	UpdateStatusFunc func(ctx context.Context, ref string, from, to orderstatus.Status, at time.Time) (bool, error)
}

func newFakeOrderRepo(orders ...restaurantorder.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[string]restaurantorder.Order{}}
	for _, o := range orders {
		r.orders[o.Ref] = o
	}

	return r
}

func (r *fakeOrderRepo) InsertIfAbsent(_ context.Context, o restaurantorder.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.Ref]; ok {
		return false, nil
	}
	r.orders[o.Ref] = o

	return true, nil
}

func (r *fakeOrderRepo) Get(_ context.Context, ref string) (*restaurantorder.Order, error) {
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

func (r *fakeOrderRepo) MarkSynced(_ context.Context, ref string, status orderstatus.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[ref]
	o.SyncedStatus = status
	o.SyncedAt = &at
	r.orders[ref] = o

	return nil
}

func (r *fakeOrderRepo) Adopt(_ context.Context, ref string, from, upstream orderstatus.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[ref]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = upstream
	o.SyncedStatus = upstream
	o.SyncedAt = &at
	o.UpdatedAt = at
	r.orders[ref] = o

	return true, nil
}

func (r *fakeOrderRepo) ListUnsynced(_ context.Context, olderThan time.Time, limit int) ([]restaurantorder.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) get(ref string) restaurantorder.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.orders[ref]
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]outbox.SyncMessage
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{rows: map[string]outbox.SyncMessage{}}
}

func (r *fakeOutboxRepo) Enqueue(_ context.Context, ref string, status orderstatus.Status, maxRetries int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	msg, ok := r.rows[ref]
	if !ok {
		r.nextID++
		msg = outbox.SyncMessage{ID: r.nextID, OrderRef: ref, CreatedAt: now}
	}
	msg.Status = status
	msg.RetryCount = 0
	msg.MaxRetries = maxRetries
	msg.LastError = lastError
	msg.UpdatedAt = now
	msg.NextRetryAt = now
	r.rows[ref] = msg

	return nil
}

func (r *fakeOutboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.SyncMessage, error) {
	return r.Query(context.Background(), outbox.QuerySyncMessagesModel{Limit: limit})
}

func (r *fakeOutboxRepo) Delete(_ context.Context, id int64, status orderstatus.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, msg := range r.rows {
		if msg.ID == id && msg.Status == status {
			delete(r.rows, ref)
		}
	}

	return nil
}

func (r *fakeOutboxRepo) DeleteByOrderRef(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, ref)

	return nil
}

func (r *fakeOutboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, msg := range r.rows {
		if msg.ID == id {
			msg.RetryCount = retryCount
			msg.LastError = lastError
			msg.NextRetryAt = nextRetryAt
			r.rows[ref] = msg
		}
	}

	return nil
}

func (r *fakeOutboxRepo) Query(_ context.Context, filter outbox.QuerySyncMessagesModel) ([]outbox.SyncMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outbox.SyncMessage
	for _, msg := range r.rows {
		if filter.OrderRef != "" && msg.OrderRef != filter.OrderRef {
			continue
		}
		if filter.DeadOnly && !msg.Dead() {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *fakeOutboxRepo) Revive(_ context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.rows[ref]
	if !ok {
		return false, nil
	}
	msg.RetryCount = 0
	msg.NextRetryAt = time.Now()
	r.rows[ref] = msg

	return true, nil
}

func (r *fakeOutboxRepo) row(ref string) (outbox.SyncMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.rows[ref]

	return msg, ok
}

type fakeUOW struct {
	orders  *fakeOrderRepo
	outbox  *fakeOutboxRepo
	commits *int
}

func (u *fakeUOW) Begin(context.Context) error { return nil }

func (u *fakeUOW) Commit(context.Context) error {
	*u.commits++

	return nil
}

func (u *fakeUOW) Rollback(context.Context) error { return nil }

func (u *fakeUOW) RestaurantOrderRepository() irestaurantorderrepo.IRestaurantOrderRepository {
	return u.orders
}

func (u *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outbox
}

type pushCall struct {
	Ref    string
	Status orderstatus.Status
	Actor  orderstatus.Actor
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
	// once holds errors returned by the next pushes, in order, before err applies.
	once []error

	upstream map[string]orderstatus.Status
	fetchErr error
}

func (p *fakePusher) Push(_ context.Context, ref string, status orderstatus.Status, actor orderstatus.Actor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{Ref: ref, Status: status, Actor: actor})
	if len(p.once) > 0 {
		err := p.once[0]
		p.once = p.once[1:]

		return err
	}

	return p.err
}

func (p *fakePusher) FetchStatus(_ context.Context, ref string) (orderstatus.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return "", p.fetchErr
	}
	st, ok := p.upstream[ref]
	if !ok {
		return "", errors.New("order not found upstream")
	}

	return st, nil
}

func refused(ref string, status orderstatus.Status) error {
	return &orderrecord.PushError{
		OrderRef:   ref,
		Status:     status,
		StatusCode: http.StatusBadRequest,
		Err:        errors.New("transition rejected"),
	}
}
