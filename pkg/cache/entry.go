package cache

import "time"

// Entry is a cached listing response.
type Entry struct {
	Body         []byte    `json:"body"`
	ContentType  string    `json:"content_type"`
	StatusCode   int       `json:"status_code"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Expires      time.Time `json:"expires"`
	StoredAt     time.Time `json:"stored_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether the entry carries a validator for a conditional request.
func (e *Entry) CanRevalidate() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
