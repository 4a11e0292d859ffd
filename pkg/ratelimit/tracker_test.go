package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		headers       map[string]string
		wantOK        bool
		wantErr       bool
		wantRemaining int
		wantHealthy   bool
	}{
		{
			name:          "healthy budget",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRemaining: "100", HeaderReset: "60"},
			wantOK:        true,
			wantRemaining: 100,
			wantHealthy:   true,
		},
		{
			name:          "low budget",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRemaining: "5", HeaderReset: "30"},
			wantOK:        true,
			wantRemaining: 5,
		},
		{
			name:   "no headers",
			status: http.StatusOK,
			wantOK: false,
		},
		{
			name:    "missing reset",
			status:  http.StatusOK,
			headers: map[string]string{HeaderRemaining: "5"},
			wantErr: true,
		},
		{
			name:    "invalid remaining",
			status:  http.StatusOK,
			headers: map[string]string{HeaderRemaining: "lots", HeaderReset: "30"},
			wantErr: true,
		},
		{
			name:          "429 with retry-after",
			status:        http.StatusTooManyRequests,
			headers:       map[string]string{HeaderRetryAfter: "12"},
			wantOK:        true,
			wantRemaining: 0,
		},
		{
			name:    "429 with invalid retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{HeaderRetryAfter: "Wed, 21 Oct 2015 07:28:00 GMT"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			state, ok, err := parseHeaders(tt.status, h)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("parseHeaders() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if state.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestNewTracker_Key(t *testing.T) {
	tracker := NewTracker(nil, "api.example.com", zerolog.Nop())
	if got := tracker.Key(); got != "userlist:rate_limit:api.example.com" {
		t.Errorf("Key() = %q", got)
	}

	tracker = NewTracker(nil, "", zerolog.Nop())
	if got := tracker.Key(); got != "userlist:rate_limit:default" {
		t.Errorf("Key() = %q", got)
	}
}

func TestTracker_GetState_Default(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), "test", zerolog.Nop())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsHealthy {
		t.Error("default state should be healthy")
	}
}

func TestTracker_UpdateAndGate(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), "test", zerolog.Nop())
	ctx := context.Background()

	h := http.Header{}
	h.Set(HeaderRemaining, "1")
	h.Set(HeaderReset, "60")
	if err := tracker.UpdateFromHeaders(ctx, http.StatusOK, h); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("request should be blocked with 1 request remaining")
	}

	h.Set(HeaderRemaining, "500")
	if err := tracker.UpdateFromHeaders(ctx, http.StatusOK, h); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Errorf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
	}
}

func TestTracker_ThrottleHonorsContext(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), "test", zerolog.Nop())

	h := http.Header{}
	h.Set(HeaderRemaining, "5")
	h.Set(HeaderReset, "60")
	if err := tracker.UpdateFromHeaders(context.Background(), http.StatusOK, h); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed || err == nil {
		t.Errorf("ShouldAllowRequest() = %v, %v; want false, context error", allowed, err)
	}
	if time.Since(start) >= ThrottleDelay {
		t.Error("throttle did not return on context cancellation")
	}
}

func TestTracker_UpdateWithoutHeaders(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), "test", zerolog.Nop())

	if err := tracker.UpdateFromHeaders(context.Background(), http.StatusOK, http.Header{}); err != nil {
		t.Errorf("UpdateFromHeaders() without headers error = %v", err)
	}
}
