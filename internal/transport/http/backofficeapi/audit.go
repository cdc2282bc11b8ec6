package backofficeapi

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/gorilla/schema"
)

type auditService interface {
	Query(ctx context.Context, filter auditlog.QueryAuditModel) ([]auditlog.DispatchAuditEntry, error)
}

type auditRequest struct {
	OrderRef string `schema:"orderRef,omitempty"`
	Limit    int    `schema:"limit,omitempty"    validate:"gte=0"`
	Offset   int    `schema:"offset,omitempty"   validate:"gte=0"`
}

func (q *auditRequest) toModel() auditlog.QueryAuditModel {
	return auditlog.QueryAuditModel{
		OrderRef: q.OrderRef,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

// DispatchAudit handles GET /audit/dispatch.
func DispatchAudit(w http.ResponseWriter, r *http.Request, svc auditService) {
	decoder := schema.NewDecoder()
	query := &auditRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}
	if err := validate.Struct(query); err != nil {
		response.Error(w, http.StatusBadRequest, err)

		return
	}

	entries, err := svc.Query(r.Context(), query.toModel())
	if err != nil {
		writeError(w, err)

		return
	}
	if entries == nil {
		entries = []auditlog.DispatchAuditEntry{}
	}

	response.OK(w, http.StatusOK, entries)
}
