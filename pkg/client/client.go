// Package client provides the storefront catalog API client with a
// time-bounded response cache.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/palermolight/catalog-client/pkg/cache"
	"github.com/palermolight/catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog API requests.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog API errors by class",
	}, []string{"class"})
)

// Client is the storefront catalog API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Store
	config     Config
	now        func() time.Time
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, e.g. "https://api.example.com".
	BaseURL string

	// Cache stores fetched responses. Nil means a private MemoryStore.
	Cache cache.Store

	// CacheTTL is how long a cached response is served without a request.
	CacheTTL time.Duration

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string

	// Logger receives the client's log lines. Nil means the global logger.
	// A logger carried by the request context takes precedence.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		CacheTTL:  cache.DefaultTTL,
		Timeout:   30 * time.Second,
		UserAgent: "catalog-client/1.0",
	}
}

// New creates a new catalog API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache_ttl must be >= 0 (got %s)", cfg.CacheTTL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore()
	}

	logger := logging.NewLogger("client")
	if cfg.Logger != nil {
		logger = logging.WithComponent(*cfg.Logger, "client")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cache:   store,
		config:  cfg,
		now:     time.Now,
		logger:  logger,
	}, nil
}

func (c *Client) log(ctx context.Context) *zerolog.Logger {
	l := logging.FromContext(ctx, "client", c.logger)
	return &l
}

// FetchWithCache performs a GET request for endpoint with params, serving a
// cached payload when one younger than the TTL exists and forceFresh is false.
//
// Successful responses overwrite the cache entry for the key. Failures and
// cancellations are returned to the caller without retrying and leave the
// cache untouched. Concurrent calls for the same key are not coalesced.
func (c *Client) FetchWithCache(ctx context.Context, endpoint string, params url.Values, forceFresh bool) ([]byte, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	key := cache.Key{
		Endpoint:    endpoint,
		QueryParams: params,
	}
	storeLabel := cache.StoreLabel(c.cache)

	// Step 1: Check Cache
	if !forceFresh {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil && entry.IsFresh(c.now(), c.config.CacheTTL):
			cache.CacheHits.WithLabelValues(storeLabel).Inc()
			c.log(ctx).Debug().
				Str("endpoint", endpoint).
				Bool("cache_hit", true).
				Dur("age", entry.Age(c.now())).
				Msg("Serving cached response")
			return entry.Payload, nil
		case err == nil:
			cache.CacheStale.WithLabelValues(storeLabel).Inc()
		case !errors.Is(err, cache.ErrCacheMiss):
			c.log(ctx).Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 2: Execute HTTP Request
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Step 3: Update Cache on success
	entry, err := cache.ResponseToEntry(resp, c.now())
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}

	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.log(ctx).Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
	} else {
		c.log(ctx).Debug().
			Str("endpoint", endpoint).
			Int("bytes", len(entry.Payload)).
			Msg("Cached response")
	}

	return entry.Payload, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and converts transport failures and non-2xx statuses into
// *APIError. On success the caller owns resp.Body.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.log(req.Context()).Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(req.Context(), endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errClass := classifyStatus(resp.StatusCode)
		catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
		catalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    readErrorMessage(resp),
		}

		c.log(req.Context()).Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Str("message", apiErr.Message).
			Msg("Catalog request error")

		return nil, apiErr
	}

	catalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// transportError wraps a failure that happened before a complete response
// was read.
func (c *Client) transportError(ctx context.Context, endpoint string, err error) error {
	errClass := ErrorClassNetwork
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		errClass = ErrorClassCanceled
	}

	catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
	catalogRequestsTotal.WithLabelValues(endpoint, string(errClass)).Inc()

	if errClass == ErrorClassCanceled {
		c.log(ctx).Debug().Err(err).Str("endpoint", endpoint).Msg("Catalog request cancelled")
	} else {
		c.log(ctx).Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
	}

	return &APIError{
		ErrorClass: errClass,
		Message:    "request failed",
		Err:        err,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetClock replaces the time source used for cache freshness (for testing).
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// Cache returns the cache store.
func (c *Client) Cache() cache.Store {
	return c.cache
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}
