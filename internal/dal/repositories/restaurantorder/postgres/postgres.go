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
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/jackc/pgx/v5"
)

var columns = []string{
	"order_ref",
	"restaurant_id",
	"customer_name",
	"delivery_address",
	"items",
	"total_cents",
	"currency",
	"status",
	"synced_status",
	"synced_at",
	"created_at",
	"updated_at",
}

// RestaurantOrderRepository implements the fulfillment order store for PostgreSQL.
type RestaurantOrderRepository struct {
	conn postgres.Querier
}

// NewRestaurantOrderRepository creates a new repository over a pool or a transaction.
func NewRestaurantOrderRepository(conn postgres.Querier) *RestaurantOrderRepository {
	return &RestaurantOrderRepository{
		conn: conn,
	}
}

// InsertIfAbsent stores a forwarded order; a repeated intake is ignored.
func (r *RestaurantOrderRepository) InsertIfAbsent(ctx context.Context, o restaurantorder.Order) (bool, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return false, fmt.Errorf("failed to encode items: %w", err)
	}

	var syncedStatus *string
	if o.SyncedStatus != "" {
		s := o.SyncedStatus.String()
		syncedStatus = &s
	}

	query, args, err := sq.Insert("restaurant_orders").
		Columns(columns...).
		Values(
			o.Ref,
			o.RestaurantID,
			o.CustomerName,
			o.DeliveryAddress,
			items,
			o.TotalCents,
			o.Currency.String(),
			o.Status.String(),
			syncedStatus,
			o.SyncedAt,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("ON CONFLICT (order_ref) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build insert query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert restaurant order: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Get returns the order or nil when it does not exist.
func (r *RestaurantOrderRepository) Get(ctx context.Context, ref string) (*restaurantorder.Order, error) {
	query, args, err := sq.Select(columns...).
		From("restaurant_orders").
		Where(sq.Eq{"order_ref": ref}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	o, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select restaurant order: %w", err)
	}

	return o, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *RestaurantOrderRepository) UpdateStatus(
	ctx context.Context,
	ref string,
	from, to orderstatus.Status,
	at time.Time,
) (bool, error) {
	query, args, err := sq.Update("restaurant_orders").
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
		return false, fmt.Errorf("failed to update restaurant order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkSynced records the status the order-of-record acknowledged.
func (r *RestaurantOrderRepository) MarkSynced(
	ctx context.Context,
	ref string,
	status orderstatus.Status,
	at time.Time,
) error {
	query, args, err := sq.Update("restaurant_orders").
		Set("synced_status", status.String()).
		Set("synced_at", at).
		Where(sq.Eq{"order_ref": ref}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark restaurant order synced: %w", err)
	}

	return nil
}

// Adopt takes the order-of-record status as both local and acknowledged,
// provided nobody changed the row since it was read.
func (r *RestaurantOrderRepository) Adopt(
	ctx context.Context,
	ref string,
	from, upstream orderstatus.Status,
	at time.Time,
) (bool, error) {
	query, args, err := sq.Update("restaurant_orders").
		Set("status", upstream.String()).
		Set("synced_status", upstream.String()).
		Set("synced_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"order_ref": ref, "status": from.String()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build adopt query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to adopt upstream status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListUnsynced returns stale orders the outbox does not already cover.
func (r *RestaurantOrderRepository) ListUnsynced(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]restaurantorder.Order, error) {
	query, args, err := sq.Select(columns...).
		From("restaurant_orders ro").
		Where(sq.Or{
			sq.Eq{"ro.synced_status": nil},
			sq.Expr("ro.synced_status <> ro.status"),
		}).
		Where(sq.NotEq{"ro.status": orderstatus.Pending.String()}).
		Where(sq.Lt{"ro.updated_at": olderThan}).
		Where("NOT EXISTS (SELECT 1 FROM sync_outbox so WHERE so.order_ref = ro.order_ref)").
		OrderBy("ro.updated_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced orders: %w", err)
	}
	defer rows.Close()

	var orders []restaurantorder.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurant orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*restaurantorder.Order, error) {
	var (
		o            restaurantorder.Order
		items        []byte
		cur          string
		status       string
		syncedStatus *string
	)
	err := row.Scan(
		&o.Ref,
		&o.RestaurantID,
		&o.CustomerName,
		&o.DeliveryAddress,
		&items,
		&o.TotalCents,
		&cur,
		&status,
		&syncedStatus,
		&o.SyncedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if o.Currency, err = currency.ParseCurrency(cur); err != nil {
		return nil, err
	}
	if o.Status, err = orderstatus.Parse(status); err != nil {
		return nil, err
	}
	if syncedStatus != nil {
		if o.SyncedStatus, err = orderstatus.Parse(*syncedStatus); err != nil {
			return nil, err
		}
	}
	o.Items = []order.Item{}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	return &o, nil
}
