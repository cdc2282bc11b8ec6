package fulfillmentapi

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type getOrderService interface {
	GetOrder(ctx context.Context, ref, restaurantID string) (*restaurantorder.Order, error)
}

// GetOrder handles GET /orders/{id}.
func GetOrder(w http.ResponseWriter, r *http.Request, svc getOrderService) {
	o, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"), r.Header.Get(RestaurantHeader))
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, o)
}
