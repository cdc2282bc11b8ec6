package iorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

// IOrderRepository is the order-of-record store.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) error
	// Get returns nil when the order does not exist.
	Get(ctx context.Context, ref string) (*order.Order, error)
	// UpdateStatus moves ref from `from` to `to` only if the stored status is
	// still `from`. It reports whether a row was changed.
	UpdateStatus(ctx context.Context, ref string, from, to orderstatus.Status, at time.Time) (bool, error)
}
