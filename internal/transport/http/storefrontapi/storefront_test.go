package storefrontapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	CheckoutFunc     func(ctx context.Context, o order.Order) (*order.Order, error)
	GetOrderFunc     func(ctx context.Context, ref string) (*order.Order, error)
	UpdateStatusFunc func(ctx context.Context, ref string, s orderstatus.Status, a orderstatus.Actor) (*order.Order, error)
	CancelFunc       func(ctx context.Context, ref string, a orderstatus.Actor) (*order.Order, error)
}

func (f *fakeService) Checkout(ctx context.Context, o order.Order) (*order.Order, error) {
	return f.CheckoutFunc(ctx, o)
}

func (f *fakeService) GetOrder(ctx context.Context, ref string) (*order.Order, error) {
	return f.GetOrderFunc(ctx, ref)
}

func (f *fakeService) UpdateStatus(
	ctx context.Context,
	ref string,
	s orderstatus.Status,
	a orderstatus.Actor,
) (*order.Order, error) {
	return f.UpdateStatusFunc(ctx, ref, s, a)
}

func (f *fakeService) Cancel(ctx context.Context, ref string, a orderstatus.Actor) (*order.Order, error) {
	return f.CancelFunc(ctx, ref, a)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
}

func serve(t *testing.T, svc service, method, target, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	router := chi.NewRouter()
	RegisterRoutes(router, svc)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec.Code, env
}

func TestCheckout(t *testing.T) {
	var got order.Order
	svc := &fakeService{CheckoutFunc: func(_ context.Context, o order.Order) (*order.Order, error) {
		got = o
		o.Ref = "ORD-1"
		o.Status = orderstatus.Pending

		return &o, nil
	}}

	body := `{
		"customerId": "cust-1", "customerName": "Anna", "restaurantId": "rest-1",
		"restaurantName": "Pelmeni", "restaurantAddress": "Nevsky 1", "deliveryAddress": "Liteyny 5",
		"currency": "rub", "paymentMethod": "card",
		"items": [{"menuItemId": "m-1", "title": "Pelmeni", "quantity": 2, "priceCents": 45000}]
	}`
	code, env := serve(t, svc, http.MethodPost, "/orders", body, nil)

	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.Equal(t, "RUB", got.Currency.String())
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	var o order.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "ORD-1", o.Ref)
}

func TestCheckout_Invalid(t *testing.T) {
	svc := &fakeService{}

	code, env := serve(t, svc, http.MethodPost, "/orders", `{"customerId": "c"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, _ = serve(t, svc, http.MethodPost, "/orders", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateStatus_NormalizesStatusAndActor(t *testing.T) {
	svc := &fakeService{UpdateStatusFunc: func(
		_ context.Context, ref string, s orderstatus.Status, a orderstatus.Actor,
	) (*order.Order, error) {
		assert.Equal(t, "ord-1", ref)
		assert.Equal(t, orderstatus.OutForDelivery, s)
		assert.Equal(t, orderstatus.ActorCourier, a)

		return &order.Order{Ref: "ORD-1", Status: s}, nil
	}}

	code, env := serve(t, svc, http.MethodPut, "/orders/ord-1/update-status",
		`{"status": "OutForDelivery"}`, map[string]string{ActorHeader: "Courier"})

	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestUpdateStatus_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		code      int
		retryable bool
	}{
		{name: "unknown status", body: `{"status": "teleported"}`, code: http.StatusBadRequest},
		{
			name: "rejected transition",
			body: `{"status": "delivered"}`,
			err: &orderstatus.RejectionError{
				From: orderstatus.Pending, To: orderstatus.Delivered, Reason: "not allowed",
			},
			code: http.StatusBadRequest,
		},
		{name: "not found", body: `{"status": "accepted"}`, err: ordersvc.ErrOrderNotFound, code: http.StatusNotFound},
		{
			name: "concurrent",
			body: `{"status": "accepted"}`,
			err:  fmt.Errorf("%w: ORD-1 is now rejected", ordersvc.ErrConcurrentUpdate),
			code: http.StatusConflict,
		},
		{
			name:      "dispatch down",
			body:      `{"status": "ready"}`,
			err:       fmt.Errorf("%w: timeout", ordersvc.ErrDispatchFailed),
			code:      http.StatusServiceUnavailable,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{UpdateStatusFunc: func(
				_ context.Context, ref string, s orderstatus.Status, _ orderstatus.Actor,
			) (*order.Order, error) {
				if errors.Is(tt.err, ordersvc.ErrDispatchFailed) {
					return &order.Order{Ref: "ORD-1", Status: s}, tt.err
				}

				return nil, tt.err
			}}

			code, env := serve(t, svc, http.MethodPut, "/orders/ORD-1/update-status", tt.body,
				map[string]string{ActorHeader: "restaurant"})

			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.retryable, env.Retryable)
		})
	}
}

func TestUpdateStatus_UnknownActor(t *testing.T) {
	code, _ := serve(t, &fakeService{}, http.MethodPut, "/orders/ORD-1/update-status",
		`{"status": "ready"}`, map[string]string{ActorHeader: "wizard"})

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancel_DefaultsToCustomer(t *testing.T) {
	svc := &fakeService{CancelFunc: func(_ context.Context, ref string, a orderstatus.Actor) (*order.Order, error) {
		assert.Equal(t, orderstatus.ActorCustomer, a)

		return &order.Order{Ref: ref, Status: orderstatus.Cancelled}, nil
	}}

	code, env := serve(t, svc, http.MethodPut, "/orders/ORD-1/cancel", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &fakeService{GetOrderFunc: func(context.Context, string) (*order.Order, error) {
		return nil, ordersvc.ErrOrderNotFound
	}}

	code, env := serve(t, svc, http.MethodGet, "/orders/ORD-404", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ordersvc.ErrOrderNotFound.Error(), env.Error)
}
