// Package ratelimit gates listing requests on the endpoint's advertised request budget.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset headers (and Retry-After on
// 429 responses) and keeps the resulting state in Redis, so every client sharing the
// Redis instance backs off together.
package ratelimit

import (
	"time"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests while fewer requests remain.
	ThresholdCritical = 2

	// ThresholdWarning throttles requests while fewer requests remain.
	ThresholdWarning = 10

	// ThresholdHealthy marks the budget as healthy at or above this value.
	ThresholdHealthy = 50
)

// ThrottleDelay is the pause applied to each request in the warning band.
const ThrottleDelay = 500 * time.Millisecond

// State is the last known request budget of one endpoint.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// WindowOver reports whether the reset time has passed, which makes Remaining meaningless.
func (s *State) WindowOver() bool {
	return !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return !s.WindowOver() && s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return !s.WindowOver() && s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it already has.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
