package dispatchapi

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

type getService interface {
	Get(ctx context.Context, orderRef string) (*dispatch.Record, error)
}

type listAvailableService interface {
	ListAvailable(ctx context.Context, q dispatch.QueryModel) ([]dispatch.Record, error)
}

type listAvailableRequest struct {
	Limit  int `schema:"limit,omitempty"  validate:"gte=0,lte=500"`
	Offset int `schema:"offset,omitempty" validate:"gte=0"`
}

// Get handles GET /dispatch/{orderRef}.
func Get(w http.ResponseWriter, r *http.Request, svc getService) {
	rec, err := svc.Get(r.Context(), chi.URLParam(r, "orderRef"))
	if err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusOK, rec)
}

// ListAvailable handles GET /dispatch/available, the records no courier has
// accepted yet.
func ListAvailable(w http.ResponseWriter, r *http.Request, svc listAvailableService) {
	decoder := schema.NewDecoder()
	query := &listAvailableRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}
	if err := validate.Struct(query); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	records, err := svc.ListAvailable(r.Context(), dispatch.QueryModel{Limit: query.Limit, Offset: query.Offset})
	if err != nil {
		writeError(w, err)

		return
	}
	if records == nil {
		records = []dispatch.Record{}
	}

	response.OK(w, http.StatusOK, records)
}
