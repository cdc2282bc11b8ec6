package backofficeapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/onboardingsvc"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
)

type approveService interface {
	Promote(ctx context.Context, pendingID, approverID string) (*registration.CatalogEntry, onboardingsvc.Outcome, error)
}

type approveResponse struct {
	Restaurant registration.CatalogEntry `json:"restaurant"`
	Outcome    string                    `json:"outcome"`
}

// Approve handles POST /registrations/{id}/approve. Approving an already
// promoted registration answers 200 with the live entry.
func Approve(w http.ResponseWriter, r *http.Request, svc approveService) {
	entry, outcome, err := svc.Promote(r.Context(), chi.URLParam(r, "id"), r.Header.Get(ActorIDHeader))
	if err != nil {
		if entry == nil {
			writeError(w, err)

			return
		}
		// catalog entry is live, only the pending cleanup failed
		slog.Warn("Promotion finished with leftover registration", "restaurant_id", entry.ID, "error", err)
	}

	response.OK(w, http.StatusOK, approveResponse{Restaurant: *entry, Outcome: outcome.String()})
}
