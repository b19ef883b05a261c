package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, logging.NewDiscardLogger()), server
}

func TestClientEnvelopeDecoding(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/widget/config", r.URL.Path)
		assert.Equal(t, "shop-1", r.URL.Query().Get("merchantId"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": widget.WidgetConfig{MerchantID: "shop-1", WelcomeMessage: "hi"},
		})
	}))

	cfg, err := client.GetWidgetConfig(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "shop-1", cfg.MerchantID)
	assert.Equal(t, "hi", cfg.WelcomeMessage)
}

func TestClientErrorBodyDecoding(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error_code": 4001, "message": "session not found or expired",
		})
	}))

	_, err := client.GetSession(context.Background(), "stale-id")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, 4001, apiErr.Code)
	assert.Equal(t, "session not found or expired", apiErr.Message)

	// A session-range code classifies as session regardless of the 404.
	cls := apiErr.Classify()
	assert.Equal(t, widget.CategorySession, cls.Category)
	assert.False(t, cls.Retryable)
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing listening anymore

	client := NewClient(server.URL, logging.NewDiscardLogger())
	_, err := client.CreateSession(context.Background(), "shop-1", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, widget.CategoryNetwork, apiErr.Classify().Category)
	assert.True(t, apiErr.Classify().Retryable)
}

// flakyTransport fails the first n round trips, then delegates
type flakyTransport struct {
	failures atomic.Int32
	budget   int32
	inner    http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.failures.Add(1) <= f.budget {
		return nil, errors.New("connection reset")
	}
	return f.inner.RoundTrip(req)
}

func TestClientRetriesIdempotentGets(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"data": widget.Session{SessionID: "s1"}})
	}))
	client.WithHTTPClient(&http.Client{
		Transport: &flakyTransport{budget: 2, inner: http.DefaultTransport},
	})

	session, err := client.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientDoesNotRetryHTTPErrors(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetSession(context.Background(), "s1")
	require.Error(t, err)
	// Server errors are retryable only through the user-facing retry
	// affordance, never transparently.
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientDoesNotRetryMutations(t *testing.T) {
	flaky := &flakyTransport{budget: 100, inner: http.DefaultTransport}
	client := NewClient("http://localhost:0", logging.NewDiscardLogger()).
		WithHTTPClient(&http.Client{Transport: flaky})

	_, err := client.SendMessage(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), flaky.failures.Load())
}

func TestClientMalformedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))

	_, err := client.Checkout(context.Background(), "s1", 10)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "malformed response envelope")
}

func TestClientRateLimitCarriesRetryAfter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error_code": 0, "message": "slow down"})
	}))

	_, err := client.SendMessage(context.Background(), "s1", "hello")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, 7, apiErr.RetryAfter)

	cls := apiErr.Classify()
	assert.Equal(t, widget.CategoryRateLimit, cls.Category)
	assert.True(t, cls.Retryable)
}
