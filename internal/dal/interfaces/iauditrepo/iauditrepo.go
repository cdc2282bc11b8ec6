package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
)

// IAuditRepository stores the dispatch event feed.
type IAuditRepository interface {
	// Save reports false when an entry with the same message id already exists.
	Save(ctx context.Context, entry auditlog.DispatchAuditEntry) (bool, error)
	Query(ctx context.Context, filter auditlog.QueryAuditModel) ([]auditlog.DispatchAuditEntry, error)
}
