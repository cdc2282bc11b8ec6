package uow

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/irestaurantorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	outboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/outbox/postgres"
	restaurantorderrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/restaurantorder/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups the fulfillment repositories under one transaction.
type UnitOfWork struct {
	client              *postgres.Client
	tx                  pgx.Tx
	restaurantOrderRepo irestaurantorderrepo.IRestaurantOrderRepository
	outboxRepo          ioutboxrepo.IOutboxRepository
}

func (u *UnitOfWork) RestaurantOrderRepository() irestaurantorderrepo.IRestaurantOrderRepository {
	return u.restaurantOrderRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// NewUnitOfWork returns repositories bound to the pool until Begin is called.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	return &UnitOfWork{
		client:              client,
		restaurantOrderRepo: restaurantorderrepo.NewRestaurantOrderRepository(client.Pool()),
		outboxRepo:          outboxrepo.NewOutboxRepository(client.Pool()),
	}
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.restaurantOrderRepo = restaurantorderrepo.NewRestaurantOrderRepository(tx)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback is a no-op after a successful commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}
