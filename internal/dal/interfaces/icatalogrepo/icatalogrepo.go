package icatalogrepo

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
)

// ICatalogRepository is the live restaurant catalog. The id is the primary key.
type ICatalogRepository interface {
	// Get returns nil when the restaurant does not exist.
	Get(ctx context.Context, id string) (*registration.CatalogEntry, error)
	Insert(ctx context.Context, e registration.CatalogEntry) error
}
