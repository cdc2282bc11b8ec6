// Package orderrecord is the Sync Client: it pushes locally accepted status
// changes to the order-of-record service.
package orderrecord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/httpjson"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
)

var ErrPushFailed = errors.New("status push failed")

// PushError describes one failed push attempt.
type PushError struct {
	OrderRef   string
	Status     orderstatus.Status
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *PushError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push %s=%s: upstream answered %d: %v", e.OrderRef, e.Status, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("push %s=%s: %v", e.OrderRef, e.Status, e.Err)
}

func (e *PushError) Unwrap() []error {
	return []error{ErrPushFailed, e.Err}
}

// Client pushes status changes with a single bounded attempt.
type Client struct {
	http *httpjson.Client
}

// NewClient creates a Sync Client for the order-of-record at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: httpjson.NewClient(baseURL, timeout),
	}
}

type updateStatusRequest struct {
	Status orderstatus.Status `json:"status"`
}

// Push sends the status as actor. It succeeds only on 2xx with success:true.
func (c *Client) Push(ctx context.Context, orderRef string, status orderstatus.Status, actor orderstatus.Actor) error {
	start := time.Now()
	err := c.push(ctx, orderRef, status, actor)
	metrics.SyncPushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncPushTotal.WithLabelValues("failure").Inc()

		return err
	}
	metrics.SyncPushTotal.WithLabelValues("success").Inc()

	return nil
}

func (c *Client) push(ctx context.Context, orderRef string, status orderstatus.Status, actor orderstatus.Actor) error {
	reply, err := c.http.Do(
		ctx,
		http.MethodPut,
		"/orders/"+url.PathEscape(orderRef)+"/update-status",
		map[string]string{"X-Actor-Role": string(actor)},
		updateStatusRequest{Status: status},
	)
	if err != nil {
		return &PushError{OrderRef: orderRef, Status: status, Retryable: true, Err: err}
	}
	if reply.OK() {
		return nil
	}

	msg := reply.Error
	if msg == "" {
		msg = "success flag not set"
	}

	return &PushError{
		OrderRef:   orderRef,
		Status:     status,
		StatusCode: reply.StatusCode,
		Retryable:  reply.Retryable || retryableCode(reply.StatusCode),
		Err:        errors.New(msg),
	}
}

func retryableCode(code int) bool {
	return code >= 500 || code == http.StatusConflict || code == http.StatusTooManyRequests
}

// FetchStatus reads the authoritative status of an order.
func (c *Client) FetchStatus(ctx context.Context, orderRef string) (orderstatus.Status, error) {
	reply, err := c.http.Do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderRef), nil, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", orderRef, err)
	}
	if !reply.OK() {
		return "", fmt.Errorf("fetch %s: status %d: %s", orderRef, reply.StatusCode, reply.Error)
	}

	var view struct {
		Status orderstatus.Status `json:"status"`
	}
	if err := reply.Decode(&view); err != nil {
		return "", fmt.Errorf("decode order %s: %w", orderRef, err)
	}

	return view.Status, nil
}
