package auditsvc

import (
	"context"
	"sync"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries map[string]auditlog.DispatchAuditEntry

	SaveFunc  func(ctx context.Context, entry auditlog.DispatchAuditEntry) (bool, error)
	lastQuery auditlog.QueryAuditModel
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{entries: map[string]auditlog.DispatchAuditEntry{}}
}

func (r *fakeAuditRepo) Save(ctx context.Context, entry auditlog.DispatchAuditEntry) (bool, error) {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.MessageID]; ok {
		return false, nil
	}
	r.entries[entry.MessageID] = entry

	return true, nil
}

func (r *fakeAuditRepo) Query(
	_ context.Context,
	filter auditlog.QueryAuditModel,
) ([]auditlog.DispatchAuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = filter

	var out []auditlog.DispatchAuditEntry
	for _, e := range r.entries {
		if filter.OrderRef == "" || e.OrderRef == filter.OrderRef {
			out = append(out, e)
		}
	}

	return out, nil
}
