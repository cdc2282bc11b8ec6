package idispatchrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
)

// IDispatchRepository is the dispatch record store. order_ref is unique.
type IDispatchRepository interface {
	// Create returns the raw store error on a duplicate order reference.
	Create(ctx context.Context, rec *dispatch.Record) error
	// GetByOrderRef returns nil when no record exists.
	GetByOrderRef(ctx context.Context, orderRef string) (*dispatch.Record, error)
	// Transition moves the record from `from` to `to` only if it still holds
	// `from`. A non-empty courierID is stored on acceptance and required to
	// match afterwards.
	Transition(ctx context.Context, orderRef string, from, to dispatch.Status, courierID string, at time.Time) (bool, error)
	List(ctx context.Context, filter dispatch.QueryModel) ([]dispatch.Record, error)
}
