package dispatchapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
)

type createService interface {
	CreateDispatchIfAbsent(ctx context.Context, snap dispatch.Snapshot) (*dispatch.Record, idempotency.Outcome, error)
}

// Create handles POST /dispatch/create. Repeated calls for one order answer
// 201 with the same record and nothing that tells them apart from the first.
func Create(w http.ResponseWriter, r *http.Request, svc createService) {
	snap := dispatch.Snapshot{}
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		slog.Error("Error decoding request body for dispatch create", "error", err)

		return
	}
	if err := validate.Struct(&snap); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	rec, outcome, err := svc.CreateDispatchIfAbsent(r.Context(), snap)
	if err != nil {
		writeError(w, err)

		return
	}

	if outcome == idempotency.AlreadyExists {
		slog.Info("Dispatch create replayed", "order_ref", rec.OrderRef)
	}
	response.OK(w, http.StatusCreated, rec)
}
