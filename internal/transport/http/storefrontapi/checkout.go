package storefrontapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/currency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type checkoutService interface {
	Checkout(ctx context.Context, o order.Order) (*order.Order, error)
}

type itemInCheckoutRequest struct {
	MenuItemID string `json:"menuItemId" validate:"required"`
	Title      string `json:"title"      validate:"required"`
	Quantity   int    `json:"quantity"   validate:"gt=0"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
}

type checkoutRequest struct {
	CustomerID        string                  `json:"customerId"        validate:"required"`
	CustomerName      string                  `json:"customerName"      validate:"required"`
	CustomerPhone     string                  `json:"customerPhone"`
	RestaurantID      string                  `json:"restaurantId"      validate:"required"`
	RestaurantName    string                  `json:"restaurantName"    validate:"required"`
	RestaurantAddress string                  `json:"restaurantAddress" validate:"required"`
	DeliveryAddress   string                  `json:"deliveryAddress"   validate:"required"`
	Currency          string                  `json:"currency"          validate:"required"`
	PaymentMethod     string                  `json:"paymentMethod"     validate:"required,oneof=card cash"`
	Items             []itemInCheckoutRequest `json:"items"             validate:"required,min=1,dive"`
}

func (r *checkoutRequest) toModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(r.Currency)
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = order.Item{
			MenuItemID: it.MenuItemID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		}
	}

	return &order.Order{
		CustomerID:        r.CustomerID,
		CustomerName:      r.CustomerName,
		CustomerPhone:     r.CustomerPhone,
		RestaurantID:      r.RestaurantID,
		RestaurantName:    r.RestaurantName,
		RestaurantAddress: r.RestaurantAddress,
		DeliveryAddress:   r.DeliveryAddress,
		Items:             items,
		Currency:          cur,
		PaymentMethod:     order.PaymentMethod(r.PaymentMethod),
	}, nil
}

// Checkout handles POST /orders.
func Checkout(w http.ResponseWriter, r *http.Request, svc checkoutService) {
	req := checkoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		slog.Error("Error decoding request body for checkout", "error", err)

		return
	}

	if err := validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	model, err := req.toModel()
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	created, err := svc.Checkout(r.Context(), *model)
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusCreated, created)
}
