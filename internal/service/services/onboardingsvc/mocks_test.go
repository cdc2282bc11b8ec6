package onboardingsvc

import (
	"context"
	"sync"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRegistrationRepo struct {
	mu      sync.Mutex
	pending map[string]registration.Pending
	deletes int
}

func (r *fakeRegistrationRepo) Create(_ context.Context, p registration.Pending) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.ID] = p

	return nil
}

func (r *fakeRegistrationRepo) Get(_ context.Context, id string) (*registration.Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return nil, nil
	}

	return &p, nil
}

func (r *fakeRegistrationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
	r.deletes++

	return nil
}

func (r *fakeRegistrationRepo) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]

	return ok
}

type fakeCatalogRepo struct {
	mu   sync.Mutex
	live map[string]registration.CatalogEntry

	InsertFunc func(ctx context.Context, e registration.CatalogEntry) error
}

func (r *fakeCatalogRepo) Get(_ context.Context, id string) (*registration.CatalogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[id]
	if !ok {
		return nil, nil
	}

	return &e, nil
}

func (r *fakeCatalogRepo) Insert(ctx context.Context, e registration.CatalogEntry) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[e.ID]; ok {
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"restaurants_pkey\""}
	}
	r.live[e.ID] = e

	return nil
}

func (r *fakeCatalogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.live)
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	approved []string
	err      error
}

func (r *fakeAccountRepo) MarkApproved(_ context.Context, accountID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.approved = append(r.approved, accountID)

	return nil
}
