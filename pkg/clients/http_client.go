// Package clients provides the HTTP client used to page through a service
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/metrics"
)

// HTTPClient issues rate limited requests behind a circuit breaker
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	metrics    *metrics.Metrics

	totalRequests  atomic.Int64
	failedRequests atomic.Int64

	circuitBreaker *CircuitBreaker
	rateLimiter    RateLimiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`

	// Headers are sent with every request
	Headers   map[string]string `json:"headers"`
	UserAgent string            `json:"user_agent"`

	// RateLimit is requests per second; zero disables limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	SuccessThreshold      int           `json:"success_threshold"`
	OpenTimeout           time.Duration `json:"open_timeout"`
}

// DefaultHTTPConfig returns default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        30 * time.Second,
		UserAgent:             "nebula-restclient/1.0",
		RateBurst:             1,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      1,
		OpenTimeout:           30 * time.Second,
	}
}

// NewHTTPClient creates a client; m may be nil
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger, m *metrics.Metrics) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:  config,
		logger:  logger.With(zap.String("component", "http_client")),
		metrics: m,
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		client.rateLimiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst)
	}
	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			SuccessThreshold: config.SuccessThreshold,
			Timeout:          config.OpenTimeout,
		}, client.logger)
	}
	return client
}

// Get fetches url and returns the body of a 2xx response. Other statuses
// become typed errors: 429 is rate_limit, 408 and 504 are timeout, other 5xx
// are connection and the rest are data.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid request")
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		c.failedRequests.Add(1)
		return nil, err.WithDetail("url", url)
	}
	return body, nil
}

// Do sends req after the rate limiter and circuit breaker admit it
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			c.failedRequests.Add(1)
			return nil, errors.Wrap(err, errors.ErrorTypeRateLimit, "rate limiter wait aborted")
		}
	}
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		c.failedRequests.Add(1)
		return nil, errors.New(errors.ErrorTypeConnection, "circuit breaker open")
	}

	c.totalRequests.Add(1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.metrics.HTTPRequest(0, duration)
		c.failedRequests.Add(1)
		c.circuitBreaker.RecordFailure()
		if req.Context().Err() != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request canceled")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}

	c.metrics.HTTPRequest(resp.StatusCode, duration)
	if resp.StatusCode >= 500 {
		c.circuitBreaker.RecordFailure()
	} else {
		c.circuitBreaker.RecordSuccess()
	}
	return resp, nil
}

func statusError(code int, body []byte) *errors.Error {
	if code >= 200 && code < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	msg := fmt.Sprintf("unexpected status %d: %s", code, snippet)
	switch {
	case code == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeRateLimit, msg)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return errors.New(errors.ErrorTypeTimeout, msg)
	case code >= 500:
		return errors.New(errors.ErrorTypeConnection, msg)
	default:
		return errors.New(errors.ErrorTypeData, msg)
	}
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := c.totalRequests.Load()
	failed := c.failedRequests.Load()
	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.State().String()
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.logger.Debug("closing HTTP client", zap.Int64("requests", c.totalRequests.Load()))
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
	CircuitState   string  `json:"circuit_state,omitempty"`
}
