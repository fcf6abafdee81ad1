package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	logpkg "pricewatch/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hc *http.Client) Client {
	return Client{Client: hc, Logger: logpkg.NewLogger(logpkg.LevelOff, io.Discard)}
}

func TestClient_WebhookSend(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotMethod, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody = string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.Client())
	err := c.WebhookSend(context.Background(), srv.URL, map[string]string{"type": "price_change"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"type":"price_change"}`, gotBody)
}

func TestClient_WebhookSend_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such hook", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.Client())
	err := c.WebhookSend(context.Background(), srv.URL, map[string]string{"type": "price_change"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such hook")
}
