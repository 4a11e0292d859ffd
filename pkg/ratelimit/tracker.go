package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Header names read by the tracker.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Prometheus metrics for rate limit tracking.
var (
	requestsRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "userlist_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	}, []string{"scope"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userlist_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit budget is exhausted",
	}, []string{"scope"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userlist_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the rate limit budget is low",
	}, []string{"scope"})
)

// Tracker monitors an endpoint's request budget and gates requests.
type Tracker struct {
	redis  *redis.Client
	scope  string
	logger zerolog.Logger
}

// NewTracker creates a tracker. scope separates the state of different endpoints
// sharing one Redis (typically the endpoint host).
func NewTracker(redisClient *redis.Client, scope string, logger zerolog.Logger) *Tracker {
	if scope == "" {
		scope = "default"
	}
	return &Tracker{
		redis:  redisClient,
		scope:  scope,
		logger: logger.With().Str("scope", scope).Logger(),
	}
}

// Key returns the Redis key holding the tracker's state.
func (t *Tracker) Key() string {
	return "userlist:rate_limit:" + t.scope
}

// GetState loads the state from Redis. Without stored state the budget is assumed healthy.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	data, err := t.redis.Get(ctx, t.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{
			Remaining:  ThresholdHealthy,
			ResetAt:    time.Now(),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	return &state, nil
}

// UpdateFromHeaders records the budget advertised by a response.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, status int, headers http.Header) error {
	state, ok, err := parseHeaders(status, headers)
	if err != nil || !ok {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}

	// keep the state a little past the window so a late reader still sees the reset
	ttl := state.TimeUntilReset() + time.Minute
	if err := t.redis.Set(ctx, t.Key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	requestsRemaining.WithLabelValues(t.scope).Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now. In the warning band
// it delays for ThrottleDelay first, returning early if ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.WithLabelValues(t.scope).Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")
		rateLimitThrottlesTotal.WithLabelValues(t.scope).Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(ThrottleDelay):
		}
	}

	return true, nil
}

// parseHeaders extracts a state from response headers. ok is false when the response
// carries no rate limit information.
func parseHeaders(status int, headers http.Header) (*State, bool, error) {
	now := time.Now()

	if status == http.StatusTooManyRequests {
		if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" {
			secs, err := strconv.Atoi(retryAfter)
			if err != nil {
				return nil, false, fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
			}
			state := &State{
				Remaining:  0,
				ResetAt:    now.Add(time.Duration(secs) * time.Second),
				LastUpdate: now,
			}
			state.UpdateHealth()
			return state, true, nil
		}
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, false, fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSecs, err := strconv.Atoi(resetStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSecs) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, true, nil
}
