package fulfillmentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/fulfillmentsvc"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	IntakeFunc           func(ctx context.Context, o order.Order) (*restaurantorder.Order, bool, error)
	GetOrderFunc         func(ctx context.Context, ref, restaurantID string) (*restaurantorder.Order, error)
	UpdateStatusFunc     func(ctx context.Context, ref, restaurantID string, s orderstatus.Status) (*fulfillmentsvc.UpdateResult, error)
	ApplyUpstreamFunc    func(ctx context.Context, ref string, s orderstatus.Status) (*restaurantorder.Order, bool, error)
	ListSyncFailuresFunc func(ctx context.Context, f outbox.QuerySyncMessagesModel) ([]outbox.SyncMessage, error)
	RetrySyncFunc        func(ctx context.Context, ref string) error
}

func (f *fakeService) Intake(ctx context.Context, o order.Order) (*restaurantorder.Order, bool, error) {
	return f.IntakeFunc(ctx, o)
}

func (f *fakeService) GetOrder(ctx context.Context, ref, restaurantID string) (*restaurantorder.Order, error) {
	return f.GetOrderFunc(ctx, ref, restaurantID)
}

func (f *fakeService) UpdateStatus(
	ctx context.Context,
	ref, restaurantID string,
	s orderstatus.Status,
) (*fulfillmentsvc.UpdateResult, error) {
	return f.UpdateStatusFunc(ctx, ref, restaurantID, s)
}

func (f *fakeService) ApplyUpstream(
	ctx context.Context,
	ref string,
	s orderstatus.Status,
) (*restaurantorder.Order, bool, error) {
	return f.ApplyUpstreamFunc(ctx, ref, s)
}

func (f *fakeService) ListSyncFailures(
	ctx context.Context,
	filter outbox.QuerySyncMessagesModel,
) ([]outbox.SyncMessage, error) {
	return f.ListSyncFailuresFunc(ctx, filter)
}

func (f *fakeService) RetrySync(ctx context.Context, ref string) error {
	return f.RetrySyncFunc(ctx, ref)
}

type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	SyncWarning bool            `json:"syncWarning"`
}

func serve(t *testing.T, svc service, req *http.Request) (int, envelope) {
	t.Helper()
	router := chi.NewRouter()
	RegisterRoutes(router, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec.Code, env
}

func statusRequest(ref, restaurantID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/orders/"+ref+"/status", strings.NewReader(body))
	if restaurantID != "" {
		req.Header.Set(RestaurantHeader, restaurantID)
	}

	return req
}

func TestUpdateStatus_SyncWarning(t *testing.T) {
	svc := &fakeService{UpdateStatusFunc: func(
		_ context.Context, ref, restaurantID string, s orderstatus.Status,
	) (*fulfillmentsvc.UpdateResult, error) {
		assert.Equal(t, "rest-1", restaurantID)
		assert.Equal(t, orderstatus.Accepted, s)

		return &fulfillmentsvc.UpdateResult{
			Order:       restaurantorder.Order{Ref: ref, Status: s, SyncedStatus: orderstatus.Pending},
			SyncWarning: true,
		}, nil
	}}

	code, env := serve(t, svc, statusRequest("ORD-1", "rest-1", `{"status": "ACCEPTED"}`))

	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.True(t, env.SyncWarning)

	var o restaurantorder.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, orderstatus.Accepted, o.Status)
}

func TestUpdateStatus_ErrorCodes(t *testing.T) {
	tests := []struct {
		name         string
		restaurantID string
		body         string
		err          error
		code         int
	}{
		{name: "missing restaurant", body: `{"status": "accepted"}`, code: http.StatusBadRequest},
		{name: "bad status", restaurantID: "rest-1", body: `{"status": "cooking"}`, code: http.StatusBadRequest},
		{
			name:         "rejected",
			restaurantID: "rest-1",
			body:         `{"status": "delivered"}`,
			err:          &orderstatus.RejectionError{From: orderstatus.Pending, To: orderstatus.Delivered},
			code:         http.StatusBadRequest,
		},
		{
			name:         "foreign restaurant",
			restaurantID: "rest-2",
			body:         `{"status": "accepted"}`,
			err:          fulfillmentsvc.ErrForbidden,
			code:         http.StatusForbidden,
		},
		{
			name:         "unknown order",
			restaurantID: "rest-1",
			body:         `{"status": "accepted"}`,
			err:          fulfillmentsvc.ErrOrderNotFound,
			code:         http.StatusNotFound,
		},
		{
			name:         "concurrent",
			restaurantID: "rest-1",
			body:         `{"status": "accepted"}`,
			err:          fmt.Errorf("%w: ORD-1", fulfillmentsvc.ErrConcurrentUpdate),
			code:         http.StatusConflict,
		},
		{
			name:         "cancelled upstream",
			restaurantID: "rest-1",
			body:         `{"status": "accepted"}`,
			err:          fmt.Errorf("%w: ORD-1 is cancelled", fulfillmentsvc.ErrSuperseded),
			code:         http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{UpdateStatusFunc: func(
				context.Context, string, string, orderstatus.Status,
			) (*fulfillmentsvc.UpdateResult, error) {
				return nil, tt.err
			}}

			code, env := serve(t, svc, statusRequest("ORD-1", tt.restaurantID, tt.body))
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
		})
	}
}

func TestIntake(t *testing.T) {
	calls := 0
	svc := &fakeService{IntakeFunc: func(_ context.Context, o order.Order) (*restaurantorder.Order, bool, error) {
		calls++
		local := restaurantorder.FromRecord(o)

		return &local, calls == 1, nil
	}}
	body := `{"orderRef": "ORD-1", "restaurantId": "rest-1", "status": "pending", "currency": "RUB"}`

	code, env := serve(t, svc, httptest.NewRequest(http.MethodPost, "/orders/intake", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	code, _ = serve(t, svc, httptest.NewRequest(http.MethodPost, "/orders/intake", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, code)

	code, _ = serve(t, svc, httptest.NewRequest(http.MethodPost, "/orders/intake", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSyncFailures(t *testing.T) {
	svc := &fakeService{ListSyncFailuresFunc: func(
		_ context.Context, f outbox.QuerySyncMessagesModel,
	) ([]outbox.SyncMessage, error) {
		assert.True(t, f.DeadOnly)
		assert.Equal(t, 20, f.Limit)

		return []outbox.SyncMessage{
			{ID: 1, OrderRef: "ORD-1", Status: orderstatus.Ready, RetryCount: 8, MaxRetries: 8},
		}, nil
	}}

	code, env := serve(t, svc, httptest.NewRequest(http.MethodGet, "/sync/failures?deadOnly=true&limit=20", nil))
	require.Equal(t, http.StatusOK, code)

	var rows []struct {
		OrderRef string `json:"orderRef"`
		Dead     bool   `json:"dead"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Dead)

	code, _ = serve(t, svc, httptest.NewRequest(http.MethodGet, "/sync/failures?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRetrySync(t *testing.T) {
	svc := &fakeService{RetrySyncFunc: func(_ context.Context, ref string) error {
		if ref == "ORD-1" {
			return nil
		}

		return fulfillmentsvc.ErrNothingToSync
	}}

	code, env := serve(t, svc, httptest.NewRequest(http.MethodPost, "/sync/ORD-1/retry", nil))
	assert.Equal(t, http.StatusAccepted, code)
	assert.True(t, env.Success)

	code, _ = serve(t, svc, httptest.NewRequest(http.MethodPost, "/sync/ORD-2/retry", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateUpstreamStatus(t *testing.T) {
	var got orderstatus.Status
	svc := &fakeService{ApplyUpstreamFunc: func(
		_ context.Context, ref string, s orderstatus.Status,
	) (*restaurantorder.Order, bool, error) {
		if ref == "ORD-9" {
			return nil, false, fmt.Errorf("%w: ORD-9", fulfillmentsvc.ErrUpstreamBehind)
		}
		got = s

		return &restaurantorder.Order{Ref: ref, Status: s, SyncedStatus: s}, true, nil
	}}
	put := func(ref, body string) *http.Request {
		return httptest.NewRequest(http.MethodPut, "/orders/"+ref+"/upstream-status", strings.NewReader(body))
	}

	code, env := serve(t, svc, put("ORD-1", `{"status": "cancelled"}`))
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, orderstatus.Cancelled, got)

	var o restaurantorder.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, orderstatus.Cancelled, o.Status)

	code, _ = serve(t, svc, put("ORD-9", `{"status": "accepted"}`))
	assert.Equal(t, http.StatusConflict, code)

	code, _ = serve(t, svc, put("ORD-1", `{"status": "cooking"}`))
	assert.Equal(t, http.StatusBadRequest, code)
}
