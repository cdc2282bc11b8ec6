package irestaurantorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
)

// IRestaurantOrderRepository is the fulfillment-side order store.
type IRestaurantOrderRepository interface {
	// InsertIfAbsent reports false when the order was already present.
	InsertIfAbsent(ctx context.Context, o restaurantorder.Order) (bool, error)
	// Get returns nil when the order does not exist.
	Get(ctx context.Context, ref string) (*restaurantorder.Order, error)
	// UpdateStatus is a conditional write on the previously read status.
	UpdateStatus(ctx context.Context, ref string, from, to orderstatus.Status, at time.Time) (bool, error)
	// MarkSynced records that upstream acknowledged status.
	MarkSynced(ctx context.Context, ref string, status orderstatus.Status, at time.Time) error
	// Adopt overwrites a status still equal to from with the authoritative
	// upstream one and records it as acknowledged.
	Adopt(ctx context.Context, ref string, from, upstream orderstatus.Status, at time.Time) (bool, error)
	// ListUnsynced returns non-pending orders whose status was not acknowledged,
	// last touched before olderThan and with no outbox row.
	ListUnsynced(ctx context.Context, olderThan time.Time, limit int) ([]restaurantorder.Order, error)
}
