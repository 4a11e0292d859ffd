package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the fallback lifetime when the response carries no freshness headers.
const DefaultTTL = 30 * time.Second

// ResponseToEntry reads resp into an Entry. The body is restored so the caller can
// still consume it. fallback is used when neither Cache-Control max-age nor Expires
// is present; zero means DefaultTTL.
func ResponseToEntry(resp *http.Response, fallback time.Duration) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		ETag:        resp.Header.Get("ETag"),
		Expires:     expiresAt(resp.Header, now, fallback),
		StoredAt:    now,
	}

	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		if t, err := http.ParseTime(lastMod); err == nil {
			entry.LastModified = t
		}
	}

	return entry, nil
}

// EntryToResponse rebuilds an HTTP response from a cached entry for req.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := http.Header{}
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	if entry.ETag != "" {
		header.Set("ETag", entry.ETag)
	}
	header.Set("X-Cache", "HIT")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

// AddConditionalHeaders sets If-None-Match, or If-Modified-Since when no ETag is known.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}

// FreshUntil computes a new expiry from the headers of a 304 response.
func FreshUntil(headers http.Header, fallback time.Duration) time.Time {
	return expiresAt(headers, time.Now(), fallback)
}

// expiresAt prefers Cache-Control max-age over Expires; no-store and no-cache mean
// "already expired".
func expiresAt(headers http.Header, now time.Time, fallback time.Duration) time.Time {
	if fallback <= 0 {
		fallback = DefaultTTL
	}

	if cc := headers.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(strings.ToLower(directive))
			switch {
			case directive == "no-store" || directive == "no-cache":
				return now
			case strings.HasPrefix(directive, "max-age="):
				if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs >= 0 {
					return now.Add(time.Duration(secs) * time.Second)
				}
			}
		}
	}

	if expires := headers.Get("Expires"); expires != "" {
		t, err := http.ParseTime(expires)
		if err != nil {
			return now.Add(fallback)
		}
		if t.Before(now) {
			return now
		}
		return t
	}

	return now.Add(fallback)
}
