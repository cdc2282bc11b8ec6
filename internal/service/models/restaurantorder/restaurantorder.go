package restaurantorder

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/currency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

// Order is the fulfillment service's copy of an order. It may lag behind the
// order-of-record but every local status change is pushed upstream.
type Order struct {
	Ref             string             `json:"orderRef"`
	RestaurantID    string             `json:"restaurantId"`
	CustomerName    string             `json:"customerName"`
	DeliveryAddress string             `json:"deliveryAddress"`
	Items           []order.Item       `json:"items"`
	TotalCents      int64              `json:"totalCents"`
	Currency        currency.Currency  `json:"currency"`
	Status          orderstatus.Status `json:"status"`
	// SyncedStatus is the last status the order-of-record acknowledged.
	SyncedStatus orderstatus.Status `json:"syncedStatus,omitempty"`
	SyncedAt     *time.Time         `json:"syncedAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// InSync reports whether upstream acknowledged the current local status.
func (o Order) InSync() bool {
	return o.SyncedStatus == o.Status
}

// FromRecord builds the local copy of a freshly checked-out order.
func FromRecord(o order.Order) Order {
	return Order{
		Ref:             o.Ref,
		RestaurantID:    o.RestaurantID,
		CustomerName:    o.CustomerName,
		DeliveryAddress: o.DeliveryAddress,
		Items:           o.Items,
		TotalCents:      o.TotalCents,
		Currency:        o.Currency,
		Status:          o.Status,
		SyncedStatus:    o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
