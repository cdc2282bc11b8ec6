package dispatchapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/dispatchsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// CourierHeader identifies the courier when the body does not.
const CourierHeader = "X-Courier-ID"

var validate = validator.New()

type service interface {
	createService
	getService
	listAvailableService
	courierService
}

// RegisterRoutes mounts the dispatch endpoints.
func RegisterRoutes(r chi.Router, svc service) {
	r.Route("/dispatch", func(r chi.Router) {
		r.Post("/create", func(w http.ResponseWriter, r *http.Request) { Create(w, r, svc) })
		r.Get("/available", func(w http.ResponseWriter, r *http.Request) { ListAvailable(w, r, svc) })
		r.Get("/{orderRef}", func(w http.ResponseWriter, r *http.Request) { Get(w, r, svc) })
		r.Put("/{orderRef}/accept", func(w http.ResponseWriter, r *http.Request) { Accept(w, r, svc) })
		r.Put("/{orderRef}/pickup", func(w http.ResponseWriter, r *http.Request) { PickUp(w, r, svc) })
		r.Put("/{orderRef}/deliver", func(w http.ResponseWriter, r *http.Request) { Deliver(w, r, svc) })
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatchsvc.ErrDispatchNotFound):
		response.Error(w, http.StatusNotFound, err)
	case errors.Is(err, dispatchsvc.ErrCourierRequired),
		errors.Is(err, idempotency.ErrEmptyKey):
		response.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, dispatchsvc.ErrForeignCourier):
		response.Error(w, http.StatusForbidden, err)
	case errors.Is(err, dispatch.ErrTransitionRejected),
		errors.Is(err, dispatchsvc.ErrConcurrentUpdate):
		response.Error(w, http.StatusConflict, err)
	case errors.Is(err, dispatchsvc.ErrStoreUnavailable):
		response.Retryable(w, http.StatusServiceUnavailable, err)
	default:
		slog.Error("Dispatch request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
