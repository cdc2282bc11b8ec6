package storefrontapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

// ActorHeader carries the role of the caller of a status change.
const ActorHeader = "X-Actor-Role"

type service interface {
	checkoutService
	getOrderService
	updateStatusService
	cancelService
}

// RegisterRoutes mounts the order-of-record endpoints.
func RegisterRoutes(r chi.Router, svc service) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { Checkout(w, r, svc) })
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) { GetOrder(w, r, svc) })
		r.Put("/{id}/update-status", func(w http.ResponseWriter, r *http.Request) { UpdateStatus(w, r, svc) })
		r.Put("/{id}/cancel", func(w http.ResponseWriter, r *http.Request) { Cancel(w, r, svc) })
	})
}

type getOrderService interface {
	GetOrder(ctx context.Context, ref string) (*order.Order, error)
}

// GetOrder handles GET /orders/{id}.
func GetOrder(w http.ResponseWriter, r *http.Request, svc getOrderService) {
	o, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, o)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ordersvc.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, err)
	case errors.Is(err, orderstatus.ErrInvalidStatus):
		response.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, orderstatus.ErrTransitionRejected):
		response.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, ordersvc.ErrConcurrentUpdate):
		response.Error(w, http.StatusConflict, err)
	case errors.Is(err, ordersvc.ErrNotDispatchable):
		response.Error(w, http.StatusConflict, err)
	case errors.Is(err, ordersvc.ErrDispatchFailed):
		response.Retryable(w, http.StatusServiceUnavailable, err)
	default:
		slog.Error("Order request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
