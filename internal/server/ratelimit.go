package server

import (
	"sync"
	"time"
)

// windowLimiter counts requests in fixed one-minute windows.
type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	start   time.Time
	count   int
	nowFunc func() time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  window,
		nowFunc: time.Now,
	}
}

// take records one request and reports the remaining budget, the time until
// the window resets and whether the request is within the limit.
func (l *windowLimiter) take() (remaining int, reset time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.count = 0
	}

	l.count++
	reset = l.start.Add(l.window).Sub(now)
	remaining = max(l.limit-l.count, 0)
	return remaining, reset, l.count <= l.limit
}
