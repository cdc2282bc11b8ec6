package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/currency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/jackc/pgx/v5"
)

var columns = []string{
	"order_ref",
	"customer_id",
	"customer_name",
	"customer_phone",
	"restaurant_id",
	"restaurant_name",
	"restaurant_address",
	"delivery_address",
	"items",
	"total_cents",
	"currency",
	"payment_method",
	"status",
	"created_at",
	"updated_at",
}

// orderDal represents order data access layer model.
type orderDal struct {
	Ref               string
	CustomerID        string
	CustomerName      string
	CustomerPhone     string
	RestaurantID      string
	RestaurantName    string
	RestaurantAddress string
	DeliveryAddress   string
	Items             []byte
	TotalCents        int64
	Currency          string
	PaymentMethod     string
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (d *orderDal) toModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}
	st, err := orderstatus.Parse(d.Status)
	if err != nil {
		return nil, err
	}
	var items []order.Item
	if err := json.Unmarshal(d.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	return &order.Order{
		Ref:               d.Ref,
		CustomerID:        d.CustomerID,
		CustomerName:      d.CustomerName,
		CustomerPhone:     d.CustomerPhone,
		RestaurantID:      d.RestaurantID,
		RestaurantName:    d.RestaurantName,
		RestaurantAddress: d.RestaurantAddress,
		DeliveryAddress:   d.DeliveryAddress,
		Items:             items,
		TotalCents:        d.TotalCents,
		Currency:          cur,
		PaymentMethod:     order.PaymentMethod(d.PaymentMethod),
		Status:            st,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

// OrderRepository implements the order-of-record repository for PostgreSQL.
type OrderRepository struct {
	conn postgres.Querier
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(conn postgres.Querier) *OrderRepository {
	return &OrderRepository{
		conn: conn,
	}
}

// Insert stores a new order. A duplicate reference surfaces as a unique violation.
func (r *OrderRepository) Insert(ctx context.Context, o order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	query, args, err := sq.Insert("orders").
		Columns(columns...).
		Values(
			o.Ref,
			o.CustomerID,
			o.CustomerName,
			o.CustomerPhone,
			o.RestaurantID,
			o.RestaurantName,
			o.RestaurantAddress,
			o.DeliveryAddress,
			items,
			o.TotalCents,
			o.Currency.String(),
			string(o.PaymentMethod),
			o.Status.String(),
			o.CreatedAt,
			o.UpdatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// Get returns the order or nil when it does not exist.
func (r *OrderRepository) Get(ctx context.Context, ref string) (*order.Order, error) {
	query, args, err := sq.Select(columns...).
		From("orders").
		Where(sq.Eq{"order_ref": ref}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var d orderDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&d.Ref,
		&d.CustomerID,
		&d.CustomerName,
		&d.CustomerPhone,
		&d.RestaurantID,
		&d.RestaurantName,
		&d.RestaurantAddress,
		&d.DeliveryAddress,
		&d.Items,
		&d.TotalCents,
		&d.Currency,
		&d.PaymentMethod,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select order: %w", err)
	}

	return d.toModel()
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	ref string,
	from, to orderstatus.Status,
	at time.Time,
) (bool, error) {
	query, args, err := sq.Update("orders").
		Set("status", to.String()).
		Set("updated_at", at).
		Where(sq.Eq{"order_ref": ref, "status": from.String()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
