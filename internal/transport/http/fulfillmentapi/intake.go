package fulfillmentapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
)

type intakeService interface {
	Intake(ctx context.Context, o order.Order) (*restaurantorder.Order, bool, error)
}

type intakeRequest struct {
	order.Order
}

func (r *intakeRequest) Validate() error {
	return validate.Var(r.Ref, "required")
}

// Intake handles POST /orders/intake. A repeated intake answers 200 with the
// stored copy.
func Intake(w http.ResponseWriter, r *http.Request, svc intakeService) {
	req := intakeRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		slog.Error("Error decoding request body for intake", "error", err)

		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	stored, created, err := svc.Intake(r.Context(), req.Order)
	if err != nil {
		writeError(w, err)

		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	response.OK(w, code, stored)
}
