package backofficeapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type registrationService interface {
	Register(ctx context.Context, p registration.Pending) (*registration.Pending, error)
	GetRegistration(ctx context.Context, id string) (*registration.Pending, error)
	GetRestaurant(ctx context.Context, id string) (*registration.CatalogEntry, error)
}

type registerRequest struct {
	OwnerAccountID string `json:"ownerAccountId" validate:"required"`
	Name           string `json:"name"           validate:"required"`
	Email          string `json:"email"          validate:"required,email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"        validate:"required"`
	Cuisine        string `json:"cuisine"`
	DocumentURL    string `json:"documentUrl"    validate:"omitempty,url"`
	StatusNote     string `json:"statusNote"`
}

func (r *registerRequest) toModel() registration.Pending {
	return registration.Pending{
		OwnerAccountID: r.OwnerAccountID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Address:        r.Address,
		Cuisine:        r.Cuisine,
		DocumentURL:    r.DocumentURL,
		StatusNote:     r.StatusNote,
	}
}

// Register handles POST /registrations.
func Register(w http.ResponseWriter, r *http.Request, svc registrationService) {
	req := registerRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		slog.Error("Error decoding request body for registration", "error", err)

		return
	}
	if err := validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	p, err := svc.Register(r.Context(), req.toModel())
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusCreated, p)
}

// GetRegistration handles GET /registrations/{id}.
func GetRegistration(w http.ResponseWriter, r *http.Request, svc registrationService) {
	p, err := svc.GetRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, p)
}

// GetRestaurant handles GET /restaurants/{id}.
func GetRestaurant(w http.ResponseWriter, r *http.Request, svc registrationService) {
	e, err := svc.GetRestaurant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, e)
}
