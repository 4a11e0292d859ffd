// Package client provides the HTTP client for paginated listing endpoints, with an
// optional Redis-backed page cache and rate limit gate.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/userlist/pkg/cache"
	"github.com/Sternrassler/userlist/pkg/pagination"
	"github.com/Sternrassler/userlist/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps how much of a listing response is read.
const maxBodyBytes = 32 << 20

// Prometheus metrics for listing client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userlist_requests_total",
		Help: "Total listing requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userlist_request_duration_seconds",
		Help:    "Listing request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userlist_errors_total",
		Help: "Total listing request errors by class",
	}, []string{"class"})
)

// Client talks to a listing endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the listing service (e.g. "http://localhost:8080/api").
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Redis enables the page cache (and the rate limit gate when RateLimit is set).
	// Optional.
	Redis *redis.Client

	// RateLimit gates requests on X-RateLimit-* headers. Requires Redis.
	RateLimit bool

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// CacheTTL is the cache lifetime for responses without freshness headers.
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration without Redis.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		CacheTTL:  cache.DefaultTTL,
	}
}

// PageResponse is one decoded page with items left undecoded.
type PageResponse struct {
	Items []json.RawMessage
	Total int
}

// New creates a new listing client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RateLimit && cfg.Redis == nil {
		return nil, fmt.Errorf("rate limiting requires redis")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "listing-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		if cfg.RateLimit {
			c.rateLimiter = ratelimit.NewTracker(cfg.Redis, baseURL.Host, logger)
		}
	}

	return c, nil
}

// GetPage fetches one page of resource. Failures are *TransportError or *ResponseError;
// an invalid request fails with pagination.ErrInvalidPageRequest before any I/O.
func (c *Client) GetPage(ctx context.Context, resource string, pr pagination.PageRequest) (*PageResponse, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(resource, pr), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	endpoint := req.URL.Path

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{
			Endpoint: endpoint,
			Class:    ErrorClassNetwork,
			Err:      fmt.Errorf("read body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		if class == "" {
			class = ErrorClassPayload
		}
		return nil, &ResponseError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	page, err := decodePage(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
		return nil, &ResponseError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassPayload,
			Message:    "malformed listing payload",
			Err:        err,
		}
	}

	return page, nil
}

// PageURL builds the request URL for one page of resource.
func (c *Client) PageURL(resource string, pr pagination.PageRequest) string {
	u := c.baseURL.JoinPath(resource)
	q := url.Values{}
	q.Set("page", strconv.Itoa(pr.Page))
	q.Set("pageSize", strconv.Itoa(pr.PageSize))
	q.Set("sort", pr.Sort)
	u.RawQuery = q.Encode()
	return u.String()
}

// Do performs a single HTTP request with rate limiting and caching. It never retries.
// Non-2xx responses are returned as is; only failures without a response are errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &TransportError{Endpoint: endpoint, Class: ErrorClassNetwork, Err: ctx.Err()}
		case err != nil:
			// the listing stays usable when Redis is down
			c.logger.Warn().Err(err).Msg("Rate limit check failed")
		case !allowed:
			requestsTotal.WithLabelValues(endpoint, "blocked").Inc()
			errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &TransportError{Endpoint: endpoint, Class: ErrorClassRateLimit, Err: ErrRequestBlocked}
		}
	}

	// Step 2: Check Cache
	var (
		cacheKey = cache.Key{Resource: endpoint, Query: req.URL.Query()}
		cached   *cache.Entry
	)
	if c.cache != nil && req.Method == http.MethodGet {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 3: Revalidate instead of refetching
	if cached != nil && cached.CanRevalidate() {
		cache.AddConditionalHeaders(req, cached)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cached.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 4: Execute HTTP Request (single attempt)
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing listing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &TransportError{Endpoint: endpoint, Class: ErrorClassNetwork, Err: err}
	}

	// Step 5: Update Rate Limit from headers
	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 6: Serve 304 from cache
	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		if err := c.cache.Refresh(ctx, cacheKey, cache.FreshUntil(resp.Header, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cached, req), nil
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Listing request error")
		return resp, nil
	}

	// Step 7: Update Cache on success
	if c.cache != nil && resp.StatusCode == http.StatusOK && req.Method == http.MethodGet {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the cache manager, or nil when caching is disabled.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}
