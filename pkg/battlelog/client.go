// Package battlelog provides the core Battlelog HTTP client: authenticated
// single-request fetching with the service's peculiar status-code policy,
// plus the one-shot metadata operations built on it.
package battlelog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/brisppy/battlelog-archiver/pkg/logging"
	"github.com/brisppy/battlelog-archiver/pkg/session"
)

// Prometheus metrics for Battlelog client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battlelog_requests_total",
		Help: "Total Battlelog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "battlelog_request_duration_seconds",
		Help:    "Battlelog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	gatewayRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battlelog_gateway_retries_total",
		Help: "Total 504 gateway timeouts retried by the one-shot fetcher",
	})
)

// emptyObject is the sentinel returned when a response body does not decode
// as JSON. Callers treat it as "no usable data".
var emptyObject = json.RawMessage(`{}`)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the Battlelog BF4 API root.
	BaseURL string

	// Timeout applies per request.
	Timeout time.Duration

	// GatewayRetryDelay is slept between retries of a 504 response.
	// The one-shot fetcher retries 504s indefinitely.
	GatewayRetryDelay time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://battlelog.battlefield.com/bf4",
		Timeout:           30 * time.Second,
		GatewayRetryDelay: 5 * time.Second,
	}
}

// Client is the authenticated Battlelog client.
type Client struct {
	httpClient *http.Client
	session    *session.Session
	config     Config
	logger     zerolog.Logger
}

// New creates a new Battlelog client.
func New(sess *session.Session, cfg Config) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.GatewayRetryDelay <= 0 {
		cfg.GatewayRetryDelay = DefaultConfig().GatewayRetryDelay
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		session: sess,
		config:  cfg,
		logger:  logging.NewLogger("battlelog-client"),
	}, nil
}

// Get performs an authenticated GET with the one-shot status policy:
// 504 is retried indefinitely after GatewayRetryDelay, 403 is fatal
// (ErrBlocked), transport errors are fatal, and a body that does not decode
// as JSON yields the empty-object sentinel.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	for {
		status, body, err := c.GetOnce(ctx, endpoint)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Battlelog request failed")
			return nil, &Error{Class: ErrorClassNetwork, Endpoint: endpoint, Err: err}
		}

		switch status {
		case http.StatusGatewayTimeout:
			gatewayRetriesTotal.Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Dur("delay", c.config.GatewayRetryDelay).
				Msg("504 from gateway, retrying")
			select {
			case <-ctx.Done():
				return nil, &Error{Class: ErrorClassNetwork, Endpoint: endpoint, Err: ctx.Err()}
			case <-time.After(c.config.GatewayRetryDelay):
			}
			continue
		case http.StatusForbidden:
			return nil, &Error{
				StatusCode: status,
				Class:      ErrorClassBlocked,
				Endpoint:   endpoint,
				Err:        ErrBlocked,
			}
		}

		var raw json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", status).
				Msg("Response body is not JSON, substituting empty object")
			return emptyObject, nil
		}
		return raw, nil
	}
}

// GetOnce performs exactly one authenticated GET with no retry policy.
// The report fetch stage layers its own state machine on top of this.
func (c *Client) GetOnce(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	for name, value := range c.session.Headers {
		req.Header.Set(name, value)
	}
	for name, value := range c.session.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	label := endpointLabel(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, body, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// endpointLabel reduces an endpoint path to its first segment so profile and
// report identifiers do not explode metric label cardinality.
func endpointLabel(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}

// IsEmptyJSON reports whether raw carries no usable data: empty, JSON null,
// or an empty object/array. Battlelog returns these while a report is still
// materializing server-side. Scalar bodies (0, false, "") are data and are
// never retried; report payloads are always objects, so the distinction only
// matters for a malformed upstream.
func IsEmptyJSON(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}
