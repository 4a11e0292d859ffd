// Package cache stores listing responses in Redis and supports conditional
// revalidation.
//
// Every page of a listing is cached under a key derived from the resource path and
// its sorted query parameters, so page 3 of "users sorted by name" and page 3 of
// "users sorted by email" never collide:
//
//	userlist:users:page=3:pageSize=10:sort=name
//
// Entries keep the response body together with its validators (ETag and
// Last-Modified) and an expiry taken from Cache-Control max-age or Expires. When an
// entry exists, the client sends If-None-Match / If-Modified-Since; a 304 answer
// refreshes the entry's expiry and serves the cached body.
//
// Redis expires entries on its own through the key TTL, so the manager never has to
// sweep. An entry read after its expiry is deleted and reported as a miss.
//
// Metrics exported (see metrics.go):
//   - userlist_cache_hits_total
//   - userlist_cache_misses_total
//   - userlist_cache_stored_bytes
//   - userlist_cache_not_modified_total
//   - userlist_cache_conditional_requests_total
//   - userlist_cache_errors_total{operation}
package cache
