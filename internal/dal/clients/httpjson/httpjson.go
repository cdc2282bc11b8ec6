// Package httpjson is the small JSON-over-HTTP caller shared by the
// service-to-service clients. Every call gets its own timeout and carries the
// current trace context.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxErrorBody = 512

// Reply is a decoded response envelope.
type Reply struct {
	StatusCode  int             `json:"-"`
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	SyncWarning bool            `json:"syncWarning"`
	Retryable   bool            `json:"retryable"`
}

// OK reports a 2xx status with success set in the envelope.
func (r *Reply) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300 && r.Success
}

// Decode unmarshals the envelope data into v.
func (r *Reply) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response data")
	}

	return json.Unmarshal(r.Data, v)
}

// Client calls one peer service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for baseURL. timeout bounds every call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends body as JSON and decodes the envelope. A non-2xx status is not an
// error here; transport failures and timeouts are.
func (c *Client) Do(
	ctx context.Context,
	method, path string,
	headers map[string]string,
	body any,
) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	reply := &Reply{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, reply); err != nil {
		// peers behind a proxy may answer with plain text
		reply.Success = false
		reply.Error = truncate(strings.TrimSpace(string(raw)))
	}

	return reply, nil
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}

	return s
}
