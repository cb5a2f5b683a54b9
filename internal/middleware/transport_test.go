package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/csrf"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/logging"
)

func newEchoServer(t *testing.T) (*httptest.Server, <-chan http.Header) {
	t.Helper()
	ch := make(chan http.Header, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestChainAddsCSRFOnlyToMutatingRequests(t *testing.T) {
	srv, headers := newEchoServer(t)
	client := &http.Client{Transport: Chain(nil, CorrelationID, CSRF(csrf.Static("tok")), Logging(logging.Discard()))}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/cart/add/1/", nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	h := <-headers
	assert.Equal(t, "tok", h.Get(csrf.HeaderName))
	assert.NotEmpty(t, h.Get(HeaderCorrelationID))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/cart/", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	h = <-headers
	assert.Empty(t, h.Get(csrf.HeaderName))
}

func TestCorrelationIDFromContext(t *testing.T) {
	srv, headers := newEchoServer(t)
	client := &http.Client{Transport: Chain(nil, CorrelationID)}

	ctx := WithCorrelationID(context.Background(), "abc")
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "abc", (<-headers).Get(HeaderCorrelationID))
	assert.Equal(t, "abc", GetCorrelationID(ctx))
	assert.Empty(t, GetCorrelationID(context.Background()))
}
