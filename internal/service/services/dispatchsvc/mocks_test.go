package dispatchsvc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeDispatchRepo struct {
	mu      sync.Mutex
	records map[string]dispatch.Record

	// racers > 0 holds that many lookups until all of them arrived
	racers  int32
	arrived atomic.Int32
	gate    sync.WaitGroup

	CreateFunc func(ctx context.Context, rec *dispatch.Record) error
}

func newFakeDispatchRepo() *fakeDispatchRepo {
	return &fakeDispatchRepo{records: map[string]dispatch.Record{}}
}

func (r *fakeDispatchRepo) race(n int32) {
	r.racers = n
	r.gate.Add(int(n))
}

func (r *fakeDispatchRepo) Create(ctx context.Context, rec *dispatch.Record) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.OrderRef]; ok {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	}
	r.records[rec.OrderRef] = *rec

	return nil
}

func (r *fakeDispatchRepo) GetByOrderRef(_ context.Context, orderRef string) (*dispatch.Record, error) {
	if r.racers > 0 && r.arrived.Add(1) <= r.racers {
		r.gate.Done()
		r.gate.Wait()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orderRef]
	if !ok {
		return nil, nil
	}

	return &rec, nil
}

func (r *fakeDispatchRepo) Transition(
	_ context.Context,
	orderRef string,
	from, to dispatch.Status,
	courierID string,
	at time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orderRef]
	if !ok || rec.Status != from {
		return false, nil
	}
	if to != dispatch.StatusAccepted && rec.CourierID != courierID {
		return false, nil
	}
	applyTransition(&rec, to, courierID, at)
	r.records[orderRef] = rec

	return true, nil
}

func (r *fakeDispatchRepo) List(_ context.Context, q dispatch.QueryModel) ([]dispatch.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []dispatch.Record{}
	for _, rec := range r.records {
		if q.Status == "" || rec.Status == q.Status {
			out = append(out, rec)
		}
	}

	return out, nil
}

func (r *fakeDispatchRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (p *fakePublisher) Publish(_ context.Context, events ...dispatch.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)

	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}

	return out
}

type pushCall struct {
	Ref    string
	Status orderstatus.Status
	Actor  orderstatus.Actor
}

type fakePusher struct {
	calls []pushCall
	err   error
}

func (p *fakePusher) Push(_ context.Context, ref string, status orderstatus.Status, actor orderstatus.Actor) error {
	p.calls = append(p.calls, pushCall{Ref: ref, Status: status, Actor: actor})

	return p.err
}
