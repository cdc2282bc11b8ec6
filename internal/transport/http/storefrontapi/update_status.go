package storefrontapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type updateStatusService interface {
	UpdateStatus(
		ctx context.Context,
		ref string,
		requested orderstatus.Status,
		actor orderstatus.Actor,
	) (*order.Order, error)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles PUT /orders/{id}/update-status, the target of status
// pushes from fulfillment and dispatch.
func UpdateStatus(w http.ResponseWriter, r *http.Request, svc updateStatusService) {
	actor, err := orderstatus.ParseActor(r.Header.Get(ActorHeader))
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)

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

	o, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, actor)
	if err != nil {
		if errors.Is(err, ordersvc.ErrDispatchFailed) && o != nil {
			// status is committed; the caller retries to re-trigger dispatch
			response.JSON(w, http.StatusServiceUnavailable, response.Envelope{
				Success:   false,
				Data:      o,
				Error:     err.Error(),
				Retryable: true,
			})

			return
		}
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, o)
}
