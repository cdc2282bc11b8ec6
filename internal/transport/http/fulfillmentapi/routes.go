package fulfillmentapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// RestaurantHeader scopes order access to one restaurant.
const RestaurantHeader = "X-Restaurant-ID"

var (
	validate = validator.New()

	errRestaurantRequired = errors.New(RestaurantHeader + " header is required")
)

type service interface {
	intakeService
	getOrderService
	updateStatusService
	applyUpstreamService
	syncFailuresService
	retrySyncService
}

// RegisterRoutes mounts the restaurant-facing and sync maintenance endpoints.
func RegisterRoutes(r chi.Router, svc service) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/intake", func(w http.ResponseWriter, r *http.Request) { Intake(w, r, svc) })
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) { GetOrder(w, r, svc) })
		r.Put("/{id}/status", func(w http.ResponseWriter, r *http.Request) { UpdateStatus(w, r, svc) })
		r.Put("/{id}/upstream-status", func(w http.ResponseWriter, r *http.Request) { UpdateUpstreamStatus(w, r, svc) })
	})
	r.Route("/sync", func(r chi.Router) {
		r.Get("/failures", func(w http.ResponseWriter, r *http.Request) { SyncFailures(w, r, svc) })
		r.Post("/{id}/retry", func(w http.ResponseWriter, r *http.Request) { RetrySync(w, r, svc) })
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fulfillmentsvc.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, err)
	case errors.Is(err, fulfillmentsvc.ErrNothingToSync):
		response.Error(w, http.StatusNotFound, err)
	case errors.Is(err, fulfillmentsvc.ErrForbidden):
		response.Error(w, http.StatusForbidden, err)
	case errors.Is(err, orderstatus.ErrInvalidStatus),
		errors.Is(err, orderstatus.ErrTransitionRejected),
		errors.Is(err, idempotency.ErrEmptyKey):
		response.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, fulfillmentsvc.ErrConcurrentUpdate),
		errors.Is(err, fulfillmentsvc.ErrSuperseded),
		errors.Is(err, fulfillmentsvc.ErrUpstreamBehind):
		response.Error(w, http.StatusConflict, err)
	default:
		slog.Error("Fulfillment request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
