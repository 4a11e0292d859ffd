package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newResponse(status int, body string, headers map[string]string) *http.Response {
	rec := httptest.NewRecorder()
	for k, v := range headers {
		rec.Header().Set(k, v)
	}
	rec.WriteHeader(status)
	rec.WriteString(body)
	return rec.Result()
}

func TestResponseToEntry(t *testing.T) {
	lastMod := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	resp := newResponse(http.StatusOK, `{"items":[],"total":0}`, map[string]string{
		"ETag":          `"abc"`,
		"Content-Type":  "application/json",
		"Last-Modified": lastMod.Format(http.TimeFormat),
		"Cache-Control": "max-age=120",
	})

	entry, err := ResponseToEntry(resp, 0)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	if string(entry.Body) != `{"items":[],"total":0}` {
		t.Errorf("Body = %q", entry.Body)
	}
	if entry.ETag != `"abc"` {
		t.Errorf("ETag = %q", entry.ETag)
	}
	if !entry.LastModified.Equal(lastMod) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastMod)
	}
	if ttl := entry.TTL(); ttl < 110*time.Second || ttl > 120*time.Second {
		t.Errorf("TTL = %v, want about 120s", ttl)
	}

	// body must still be readable
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"items":[],"total":0}` {
		t.Errorf("restored body = %q", body)
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil, 0); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestExpiresAt(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute).UTC().Truncate(time.Second)

	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{name: "no headers", headers: nil, want: DefaultTTL},
		{name: "max-age", headers: map[string]string{"Cache-Control": "public, max-age=60"}, want: time.Minute},
		{name: "no-store", headers: map[string]string{"Cache-Control": "no-store"}, want: 0},
		{name: "max-age wins over expires", headers: map[string]string{"Cache-Control": "max-age=5", "Expires": future.Format(http.TimeFormat)}, want: 5 * time.Second},
		{name: "past expires", headers: map[string]string{"Expires": now.Add(-time.Hour).Format(http.TimeFormat)}, want: 0},
		{name: "garbage expires", headers: map[string]string{"Expires": "soon"}, want: DefaultTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			got := expiresAt(h, now, 0).Sub(now)
			if got != tt.want {
				t.Errorf("expiresAt() = now+%v, want now+%v", got, tt.want)
			}
		})
	}

	h := http.Header{}
	h.Set("Expires", future.Format(http.TimeFormat))
	if got := expiresAt(h, now, 0); !got.Equal(future) {
		t.Errorf("expiresAt() = %v, want %v", got, future)
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	AddConditionalHeaders(req, &Entry{ETag: `"v1"`, LastModified: time.Now()})
	if got := req.Header.Get("If-None-Match"); got != `"v1"` {
		t.Errorf("If-None-Match = %q", got)
	}
	if got := req.Header.Get("If-Modified-Since"); got != "" {
		t.Errorf("If-Modified-Since should be empty when ETag exists, got %q", got)
	}

	lastMod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	AddConditionalHeaders(req, &Entry{LastModified: lastMod})
	if got := req.Header.Get("If-Modified-Since"); got != lastMod.Format(http.TimeFormat) {
		t.Errorf("If-Modified-Since = %q", got)
	}

	// nil-safe
	AddConditionalHeaders(nil, &Entry{})
	AddConditionalHeaders(req, nil)
}

func TestEntryToResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?page=0", nil)
	resp := EntryToResponse(&Entry{
		Body:        []byte(`{"total":1}`),
		ContentType: "application/json",
		StatusCode:  http.StatusOK,
		ETag:        `"v1"`,
	}, req)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Error("X-Cache header missing")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"total":1`) {
		t.Errorf("body = %q", body)
	}
	if resp.Request != req {
		t.Error("request not attached")
	}
}
