package iregistrationrepo

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
)

// IRegistrationRepository is the pending registration store.
type IRegistrationRepository interface {
	Create(ctx context.Context, p registration.Pending) error
	// Get returns nil when the registration does not exist.
	Get(ctx context.Context, id string) (*registration.Pending, error)
	Delete(ctx context.Context, id string) error
}
