package ieventpublisher

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
)

// IEventPublisher announces dispatch lifecycle changes.
type IEventPublisher interface {
	Publish(ctx context.Context, events ...dispatch.Event) error
}
