package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/httpjson"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
)

// ErrDispatchUnavailable means the dispatch record could not be confirmed.
// The trigger is idempotent so the caller may retry.
var ErrDispatchUnavailable = errors.New("dispatch service unavailable")

// Client calls the dispatch service.
type Client struct {
	http *httpjson.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: httpjson.NewClient(baseURL, timeout),
	}
}

// CreateDispatch asks for a record for the snapshot's order. Existing records
// are returned as they are.
func (c *Client) CreateDispatch(ctx context.Context, s dispatch.Snapshot) (*dispatch.Record, error) {
	reply, err := c.http.Do(ctx, http.MethodPost, "/dispatch/create", nil, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchUnavailable, err)
	}
	if !reply.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrDispatchUnavailable, reply.StatusCode, reply.Error)
	}

	var rec dispatch.Record
	if err := reply.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", ErrDispatchUnavailable, err)
	}

	return &rec, nil
}
