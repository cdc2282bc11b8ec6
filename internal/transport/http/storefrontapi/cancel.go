package storefrontapi

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type cancelService interface {
	Cancel(ctx context.Context, ref string, actor orderstatus.Actor) (*order.Order, error)
}

// Cancel handles PUT /orders/{id}/cancel. Without a role header the caller
// is taken to be the customer.
func Cancel(w http.ResponseWriter, r *http.Request, svc cancelService) {
	actor := orderstatus.ActorCustomer
	if h := r.Header.Get(ActorHeader); h != "" {
		parsed, err := orderstatus.ParseActor(h)
		if err != nil {
			response.Error(w, http.StatusBadRequest, err)

			return
		}
		actor = parsed
	}

	o, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, o)
}
