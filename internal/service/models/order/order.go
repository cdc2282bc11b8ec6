package order

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/currency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

// Order is the order-of-record copy held by the storefront.
type Order struct {
	Ref               string             `json:"orderRef"`
	CustomerID        string             `json:"customerId"`
	CustomerName      string             `json:"customerName"`
	CustomerPhone     string             `json:"customerPhone"`
	RestaurantID      string             `json:"restaurantId"`
	RestaurantName    string             `json:"restaurantName"`
	RestaurantAddress string             `json:"restaurantAddress"`
	DeliveryAddress   string             `json:"deliveryAddress"`
	Items             []Item             `json:"items"`
	TotalCents        int64              `json:"totalCents"`
	Currency          currency.Currency  `json:"currency"`
	PaymentMethod     PaymentMethod      `json:"paymentMethod"`
	Status            orderstatus.Status `json:"status"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Item is one ordered line.
type Item struct {
	MenuItemID string `json:"menuItemId"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}

// PaymentMethod is recorded but never captured here.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// ItemsTotal sums price times quantity over all lines.
func ItemsTotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.PriceCents * int64(it.Quantity)
	}

	return total
}
