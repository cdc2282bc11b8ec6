package fulfillment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/httpjson"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
)

// Client calls the fulfillment service.
type Client struct {
	http *httpjson.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: httpjson.NewClient(baseURL, timeout),
	}
}

// Forward hands a freshly checked-out order to the restaurant side.
func (c *Client) Forward(ctx context.Context, o order.Order) error {
	reply, err := c.http.Do(ctx, http.MethodPost, "/orders/intake", nil, o)
	if err != nil {
		return fmt.Errorf("forward order %s: %w", o.Ref, err)
	}
	if !reply.OK() {
		return fmt.Errorf("forward order %s: status %d: %s", o.Ref, reply.StatusCode, reply.Error)
	}

	return nil
}

type mirrorRequest struct {
	Status orderstatus.Status `json:"status"`
}

// Mirror tells the restaurant side about a status set on the order-of-record
// by someone other than the restaurant.
func (c *Client) Mirror(ctx context.Context, orderRef string, status orderstatus.Status) error {
	reply, err := c.http.Do(
		ctx,
		http.MethodPut,
		"/orders/"+url.PathEscape(orderRef)+"/upstream-status",
		nil,
		mirrorRequest{Status: status},
	)
	if err != nil {
		return fmt.Errorf("mirror %s=%s: %w", orderRef, status, err)
	}
	if !reply.OK() {
		return fmt.Errorf("mirror %s=%s: status %d: %s", orderRef, status, reply.StatusCode, reply.Error)
	}

	return nil
}

// Resync revives the order's outbox row.
func (c *Client) Resync(ctx context.Context, orderRef string) error {
	reply, err := c.http.Do(ctx, http.MethodPost, "/sync/"+url.PathEscape(orderRef)+"/retry", nil, nil)
	if err != nil {
		return fmt.Errorf("resync %s: %w", orderRef, err)
	}
	if !reply.OK() {
		return fmt.Errorf("resync %s: status %d: %s", orderRef, reply.StatusCode, reply.Error)
	}

	return nil
}

// SyncFailures lists outbox rows.
func (c *Client) SyncFailures(ctx context.Context, deadOnly bool, limit int) ([]outbox.SyncMessage, error) {
	q := url.Values{}
	if deadOnly {
		q.Set("deadOnly", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/sync/failures"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	reply, err := c.http.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list sync failures: %w", err)
	}
	if !reply.OK() {
		return nil, fmt.Errorf("list sync failures: status %d: %s", reply.StatusCode, reply.Error)
	}

	messages := []outbox.SyncMessage{}
	if len(reply.Data) == 0 {
		return messages, nil
	}
	if err := reply.Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode sync failures: %w", err)
	}

	return messages, nil
}
