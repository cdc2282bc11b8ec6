package httpjson

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DoDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/ORD-1", r.URL.Path)
		assert.Equal(t, "courier", r.Header.Get("X-Actor-Role"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ready", body["status"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"orderRef":"ORD-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	reply, err := c.Do(context.Background(), http.MethodPut, "/orders/ORD-1",
		map[string]string{"X-Actor-Role": "courier"}, map[string]string{"status": "ready"})
	require.NoError(t, err)
	assert.True(t, reply.OK())

	var data struct {
		OrderRef string `json:"orderRef"`
	}
	require.NoError(t, reply.Decode(&data))
	assert.Equal(t, "ORD-1", data.OrderRef)
}

func TestClient_DoNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL, time.Second).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.NoError(t, err)
	assert.False(t, reply.OK())
	assert.Equal(t, http.StatusBadGateway, reply.StatusCode)
	assert.Equal(t, "bad gateway", reply.Error)
}

func TestClient_DoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	require.Error(t, err)
}
