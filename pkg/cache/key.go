package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "userlist"

// Key identifies one cached listing response.
type Key struct {
	// Resource is the listing path relative to the base URL (e.g. "users").
	Resource string

	// Query holds the request's query parameters (page, pageSize, sort).
	Query url.Values
}

// String builds a deterministic key: the prefix, the trimmed resource and the query
// parameters sorted by name. Multiple values of one parameter are joined with ",".
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if resource := strings.Trim(k.Resource, "/"); resource != "" {
		parts = append(parts, resource)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, name+"="+strings.Join(k.Query[name], ","))
	}

	return strings.Join(parts, ":")
}
