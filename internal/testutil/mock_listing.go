// Package testutil provides testing utilities for the listing client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/cespare/xxhash/v2"
)

// UsersPath is the path the mock serves the paged user listing on.
const UsersPath = "/users"

// MockResponse defines the behavior for a canned mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockListing is a configurable mock listing server for testing. By default it
// serves users page by page on UsersPath.
type MockListing struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	users     []user.User
	version   int
	failures  []MockResponse
	delay     time.Duration
	remaining int
	legacy    bool

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	Queries           []url.Values
}

// NewMockListing creates a new mock listing server serving users.
func NewMockListing(users []user.User) *MockListing {
	mock := &MockListing{
		handlers:  make(map[string]func(w http.ResponseWriter, r *http.Request)),
		users:     users,
		remaining: 100,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.Query())

		// Track conditional requests
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}

		var failure *MockResponse
		if len(mock.failures) > 0 {
			failure = &mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		handler, exists := mock.handlers[r.URL.Path]
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		switch {
		case failure != nil:
			writeResponse(w, *failure)
		case exists:
			handler(w, r)
		case r.URL.Path == UsersPath:
			mock.usersHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockListing) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockListing) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockListing) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// SetUsers replaces the served users and invalidates all ETags.
func (m *MockListing) SetUsers(users []user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users
	m.version++
}

// SetDelay delays every response, e.g. to hold a load in flight.
func (m *MockListing) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetRemaining sets the X-RateLimit-Remaining value of listing responses.
func (m *MockListing) SetRemaining(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = n
}

// SetLegacyKey makes the listing name its items "users" instead of "items".
func (m *MockListing) SetLegacyKey(legacy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = legacy
}

// FailNext answers the next request, whatever its path, with resp.
// Calls queue up in order.
func (m *MockListing) FailNext(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, resp)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockListing) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockListing) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockListing) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockListing) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockListing) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// GetQueries returns a copy of the recorded query strings.
func (m *MockListing) GetQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.Queries...)
}

// usersHandler serves one page of the sorted user list.
func (m *MockListing) usersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		http.Error(w, `{"error": "invalid page"}`, http.StatusBadRequest)
		return
	}
	pageSize, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil || pageSize <= 0 {
		http.Error(w, `{"error": "invalid pageSize"}`, http.StatusBadRequest)
		return
	}
	sortKey := q.Get("sort")

	m.mu.RLock()
	users := user.Sort(m.users, sortKey)
	version := m.version
	remaining := m.remaining
	legacy := m.legacy
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", "60")

	etag := fmt.Sprintf(`"v%d-p%d-s%d-%x"`, version, page, pageSize, xxhash.Sum64String(sortKey))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	start := min(page*pageSize, len(users))
	end := min(start+pageSize, len(users))

	items := users[start:end]
	if items == nil {
		items = []user.User{}
	}

	key := "items"
	if legacy {
		key = "users"
	}
	body, _ := json.Marshal(map[string]any{
		key:     items,
		"total": len(users),
	})

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfter),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response with an unusable body.
func NewMalformedResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
