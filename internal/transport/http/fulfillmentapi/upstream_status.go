package fulfillmentapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type applyUpstreamService interface {
	ApplyUpstream(ctx context.Context, ref string, upstream orderstatus.Status) (*restaurantorder.Order, bool, error)
}

// UpdateUpstreamStatus handles PUT /orders/{id}/upstream-status, sent by the
// storefront when a customer, courier or admin moved the order.
func UpdateUpstreamStatus(w http.ResponseWriter, r *http.Request, svc applyUpstreamService) {
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

	o, _, err := svc.ApplyUpstream(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, o)
}
