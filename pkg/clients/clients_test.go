package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/metrics"
)

func testConfig() *HTTPConfig {
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	cfg.Headers = map[string]string{"X-Api-Key": "secret"}
	return cfg
}

func TestGetSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "nebula-restclient/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewHTTPClient(testConfig(), zaptest.NewLogger(t), m)
	defer c.Close()

	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, int64(1), c.GetStats().TotalRequests)
}

func TestGetClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errType   errors.ErrorType
		retryable bool
	}{
		{"too many requests", http.StatusTooManyRequests, errors.ErrorTypeRateLimit, true},
		{"gateway timeout", http.StatusGatewayTimeout, errors.ErrorTypeTimeout, true},
		{"bad gateway", http.StatusBadGateway, errors.ErrorTypeConnection, true},
		{"not found", http.StatusNotFound, errors.ErrorTypeData, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(testConfig(), zaptest.NewLogger(t), nil)
			_, err := c.Get(context.Background(), srv.URL)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType), err.Error())
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			assert.Contains(t, err.Error(), fmt.Sprintf("unexpected status %d", tt.status))
			assert.Equal(t, int32(1), calls.Load(), "requests are never repeated")
		})
	}
}

func TestCircuitBreakerStopsRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.FailureThreshold = 2
	c := NewHTTPClient(cfg, zaptest.NewLogger(t), nil)

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		require.Error(t, err)
	}
	_, err := c.Get(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "circuit breaker open")
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", c.GetStats().CircuitState)
}

func TestCircuitBreakerOpensAndRetriesOnce(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, nil)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one trial request at a time")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())

	var disabled *CircuitBreaker
	assert.True(t, disabled.Allow())
}

func TestTokenBucket(t *testing.T) {
	now := time.Unix(0, 0)
	tb := NewTokenBucketRateLimiter(2, 2)
	tb.now = func() time.Time { return now }

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow())

	now = now.Add(10 * time.Second)
	stats := tb.Stats()
	assert.Equal(t, int64(3), stats.AllowedRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
	assert.Equal(t, 2, stats.Burst)
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucketRateLimiter(0.001, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}
