package dispatchapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/services/dispatchsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type courierService interface {
	Accept(ctx context.Context, orderRef, courierID string) (*dispatchsvc.AdvanceResult, error)
	PickUp(ctx context.Context, orderRef, courierID string) (*dispatchsvc.AdvanceResult, error)
	Deliver(ctx context.Context, orderRef, courierID string) (*dispatchsvc.AdvanceResult, error)
}

type courierRequest struct {
	CourierID string `json:"courierId"`
}

type step func(ctx context.Context, orderRef, courierID string) (*dispatchsvc.AdvanceResult, error)

// Accept handles PUT /dispatch/{orderRef}/accept.
func Accept(w http.ResponseWriter, r *http.Request, svc courierService) {
	advance(w, r, svc.Accept)
}

// PickUp handles PUT /dispatch/{orderRef}/pickup.
func PickUp(w http.ResponseWriter, r *http.Request, svc courierService) {
	advance(w, r, svc.PickUp)
}

// Deliver handles PUT /dispatch/{orderRef}/deliver.
func Deliver(w http.ResponseWriter, r *http.Request, svc courierService) {
	advance(w, r, svc.Deliver)
}

func advance(w http.ResponseWriter, r *http.Request, next step) {
	req := courierRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, err)

		return
	}
	if req.CourierID == "" {
		req.CourierID = r.Header.Get(CourierHeader)
	}

	result, err := next(r.Context(), chi.URLParam(r, "orderRef"), req.CourierID)
	if err != nil {
		writeError(w, err)

		return
	}

	response.JSON(w, http.StatusOK, response.Envelope{
		Success:     true,
		Data:        result.Record,
		SyncWarning: result.SyncWarning,
	})
}
