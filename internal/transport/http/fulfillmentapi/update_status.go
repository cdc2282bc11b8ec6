package fulfillmentapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type updateStatusService interface {
	UpdateStatus(
		ctx context.Context,
		ref, restaurantID string,
		requested orderstatus.Status,
	) (*fulfillmentsvc.UpdateResult, error)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles PUT /orders/{id}/status. The local change is kept
// even when the upstream push fails; the reply then carries syncWarning.
func UpdateStatus(w http.ResponseWriter, r *http.Request, svc updateStatusService) {
	restaurantID := r.Header.Get(RestaurantHeader)
	if restaurantID == "" {
		response.Error(w, http.StatusBadRequest, errRestaurantRequired)

		return
	}

	req := updateStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}
	if err := validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	status, err := orderstatus.Parse(req.Status)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	result, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), restaurantID, status)
	if err != nil {
		writeError(w, err)

		return
	}

	response.JSON(w, http.StatusOK, response.Envelope{
		Success:     true,
		Data:        result.Order,
		SyncWarning: result.SyncWarning,
	})
}
