package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "future", expires: time.Now().Add(time.Minute), want: false},
		{name: "past", expires: time.Now().Add(-time.Minute), want: true},
		{name: "zero", expires: time.Time{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{Expires: tt.expires}
			if got := e.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	e := &Entry{Expires: time.Now().Add(time.Minute)}
	if ttl := e.TTL(); ttl <= 50*time.Second || ttl > time.Minute {
		t.Errorf("TTL() = %v, want about 1m", ttl)
	}

	e = &Entry{Expires: time.Now().Add(-time.Minute)}
	if ttl := e.TTL(); ttl != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", ttl)
	}
}

func TestEntry_CanRevalidate(t *testing.T) {
	if (&Entry{}).CanRevalidate() {
		t.Error("entry without validators must not revalidate")
	}
	if !(&Entry{ETag: `"v1"`}).CanRevalidate() {
		t.Error("entry with ETag must revalidate")
	}
	if !(&Entry{LastModified: time.Now()}).CanRevalidate() {
		t.Error("entry with Last-Modified must revalidate")
	}
}
