// Package server implements a development listing endpoint that serves users
// page by page, the way the browser and export commands expect.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/metrics"
	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default server configuration values.
const (
	DefaultAddr            = ":8080"
	DefaultResource        = "users"
	DefaultPageSize        = 10
	DefaultMaxPageSize     = 100
	DefaultRateLimitWindow = time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxAge          = 5 * time.Second
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "userlist_server_requests_total",
	Help: "Total requests served by the dev listing server by route and status",
}, []string{"route", "status"})

// Config holds configuration for the listing server.
type Config struct {
	Addr            string
	Resource        string
	MaxPageSize     int
	RateLimit       int           // requests per window, 0 disables rate limiting
	Latency         time.Duration // added to every listing response
	MaxAge          time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		Resource:        DefaultResource,
		MaxPageSize:     DefaultMaxPageSize,
		MaxAge:          DefaultMaxAge,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Server serves a Store over HTTP.
type Server struct {
	echo    *echo.Echo
	store   *Store
	config  Config
	limiter *windowLimiter
	logger  zerolog.Logger
}

// listResponse is the listing wire format.
type listResponse struct {
	Items []user.User `json:"items"`
	Total int         `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a listing server for store.
func New(cfg Config, store *Store) *Server {
	if cfg.Resource == "" {
		cfg.Resource = DefaultResource
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPageSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		store:  store,
		config: cfg,
		logger: log.With().Str("component", "server").Logger(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newWindowLimiter(cfg.RateLimit, DefaultRateLimitWindow)
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/"+cfg.Resource, s.list)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.config.Addr).
		Str("resource", s.config.Resource).
		Int("users", s.store.Len()).
		Int("rate_limit", s.config.RateLimit).
		Msg("Starting listing server")

	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Listing server stopped")
	return nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		requestsTotal.WithLabelValues(c.Path(), strconv.Itoa(status)).Inc()
		s.logger.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("query", c.QueryString()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
		return nil
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"users":  s.store.Len(),
	})
}

func (s *Server) list(c echo.Context) error {
	if s.limiter != nil {
		remaining, reset, ok := s.limiter.take()
		resetSecs := int(math.Ceil(reset.Seconds()))
		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(s.config.RateLimit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.Itoa(resetSecs))
		if !ok {
			h.Set("Retry-After", strconv.Itoa(resetSecs))
			return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		}
	}

	page, err := queryInt(c, "page", 0)
	if err != nil || page < 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "page must be a non-negative integer"})
	}
	pageSize, err := queryInt(c, "pageSize", DefaultPageSize)
	if err != nil || pageSize <= 0 || pageSize > s.config.MaxPageSize {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("pageSize must be between 1 and %d", s.config.MaxPageSize),
		})
	}
	sortKey := c.QueryParam("sort")

	if s.config.Latency > 0 {
		select {
		case <-time.After(s.config.Latency):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	items, total, version := s.store.Page(page, pageSize, sortKey)

	etag := pageETag(version, page, pageSize, sortKey, total)
	h := c.Response().Header()
	h.Set("ETag", etag)
	if s.config.MaxAge > 0 {
		h.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(s.config.MaxAge.Seconds())))
	}
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	return c.JSON(http.StatusOK, listResponse{Items: items, Total: total})
}

// pageETag builds a strong validator for one page. The sort key is client input and is
// hashed so the tag only ever contains etagc characters.
func pageETag(version, page, pageSize int, sortKey string, total int) string {
	return fmt.Sprintf(`"v%d-%d-%d-%016x-%d"`, version, page, pageSize, xxhash.Sum64String(sortKey), total)
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
