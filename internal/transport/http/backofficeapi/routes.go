package backofficeapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/onboardingsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ActorIDHeader names the admin performing an approval.
const ActorIDHeader = "X-Actor-ID"

var validate = validator.New()

type onboardingService interface {
	registrationService
	approveService
}

// RegisterRoutes mounts onboarding and audit endpoints.
func RegisterRoutes(r chi.Router, onboarding onboardingService, audit auditService) {
	r.Route("/registrations", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { Register(w, r, onboarding) })
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) { GetRegistration(w, r, onboarding) })
		r.Post("/{id}/approve", func(w http.ResponseWriter, r *http.Request) { Approve(w, r, onboarding) })
	})
	r.Get("/restaurants/{id}", func(w http.ResponseWriter, r *http.Request) { GetRestaurant(w, r, onboarding) })
	r.Get("/audit/dispatch", func(w http.ResponseWriter, r *http.Request) { DispatchAudit(w, r, audit) })
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, onboardingsvc.ErrRegistrationNotFound),
		errors.Is(err, onboardingsvc.ErrRestaurantNotFound):
		response.Error(w, http.StatusNotFound, err)
	case errors.Is(err, onboardingsvc.ErrApproverRequired),
		errors.Is(err, idempotency.ErrEmptyKey):
		response.Error(w, http.StatusBadRequest, err)
	default:
		slog.Error("Backoffice request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
