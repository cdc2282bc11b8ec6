package iaccountrepo

import (
	"context"
	"time"
)

// IAccountRepository flips owner account flags.
type IAccountRepository interface {
	MarkApproved(ctx context.Context, accountID string, at time.Time) error
}
