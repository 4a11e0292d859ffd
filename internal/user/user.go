// Package user defines the record served by the listing endpoint.
package user

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is one listing entry.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Username  string    `json:"username,omitempty" yaml:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// SortKeys lists the sort keys the listing understands, in cycling order.
// The empty key keeps insertion order.
var SortKeys = []string{"", "name", "-name", "email", "-email", "createdAt", "-createdAt"}

// ValidSortKey reports whether key is one of SortKeys.
func ValidSortKey(key string) bool {
	return slices.Contains(SortKeys, key)
}

// NextSortKey returns the key following current in SortKeys.
func NextSortKey(current string) string {
	i := slices.Index(SortKeys, current)
	return SortKeys[(i+1)%len(SortKeys)]
}

// Sort returns a sorted copy of users. Unknown keys keep insertion order.
func Sort(users []User, key string) []User {
	out := slices.Clone(users)

	desc := strings.HasPrefix(key, "-")
	var compare func(a, b User) int
	switch strings.TrimPrefix(key, "-") {
	case "name":
		compare = func(a, b User) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case "email":
		compare = func(a, b User) int { return cmp.Compare(a.Email, b.Email) }
	case "createdAt":
		compare = func(a, b User) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return out
	}

	slices.SortStableFunc(out, func(a, b User) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

// Generate creates n synthetic users with random IDs, created one hour apart
// ending at base.
func Generate(n int, base time.Time) []User {
	users := make([]User, n)
	for i := range users {
		username := fmt.Sprintf("user%03d", i+1)
		users[i] = User{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("User %03d", i+1),
			Email:     username + "@example.com",
			Username:  username,
			CreatedAt: base.Add(-time.Duration(n-i) * time.Hour).UTC(),
		}
	}
	return users
}
