package fulfillmentapi

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}()

type syncFailuresService interface {
	ListSyncFailures(ctx context.Context, filter outbox.QuerySyncMessagesModel) ([]outbox.SyncMessage, error)
}

type retrySyncService interface {
	RetrySync(ctx context.Context, ref string) error
}

type syncFailuresRequest struct {
	OrderRef string `schema:"orderRef,omitempty"`
	DeadOnly bool   `schema:"deadOnly,omitempty"`
	Limit    int    `schema:"limit,omitempty"    validate:"gte=0,lte=1000"`
	Offset   int    `schema:"offset,omitempty"   validate:"gte=0"`
}

func (q *syncFailuresRequest) toModel() outbox.QuerySyncMessagesModel {
	return outbox.QuerySyncMessagesModel{
		OrderRef: q.OrderRef,
		DeadOnly: q.DeadOnly,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

type syncMessageView struct {
	outbox.SyncMessage
	Dead bool `json:"dead"`
}

// SyncFailures handles GET /sync/failures: pushes still owed to the
// order-of-record, with dead letters flagged.
func SyncFailures(w http.ResponseWriter, r *http.Request, svc syncFailuresService) {
	query := &syncFailuresRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}
	if err := validate.Struct(query); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	messages, err := svc.ListSyncFailures(r.Context(), query.toModel())
	if err != nil {
		writeError(w, err)

		return
	}

	views := make([]syncMessageView, len(messages))
	for i := range messages {
		views[i] = syncMessageView{SyncMessage: messages[i], Dead: messages[i].Dead()}
	}
	response.OK(w, http.StatusOK, views)
}

// RetrySync handles POST /sync/{id}/retry.
func RetrySync(w http.ResponseWriter, r *http.Request, svc retrySyncService) {
	ref := chi.URLParam(r, "id")
	if err := svc.RetrySync(r.Context(), ref); err != nil {
		writeError(w, err)

		return
	}

	response.OK(w, http.StatusAccepted, map[string]string{"orderRef": ref})
}
