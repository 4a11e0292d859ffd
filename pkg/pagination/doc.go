// Package pagination loads paginated listings page by page.
//
// Listing endpoints answer a PageRequest (page index, page size, sort key) with one
// page of items plus the total number of items matching the sort/filter. This package
// builds two consumers on top of that contract:
//
//   - PagedFetcher accumulates pages on demand for an infinite-scroll view. It tracks
//     the next page index and an end-of-data flag, and only mutates its state after a
//     successful response.
//   - BatchFetcher fetches every page of a listing with a bounded worker pool, for
//     exports and other bulk reads.
//
// Example usage:
//
//	source := client.NewSource[user.User](c, "users")
//	fetcher := pagination.NewPagedFetcher[user.User](source, pagination.DefaultFetcherConfig())
//	if _, err := fetcher.LoadNextPage(ctx, "name"); err != nil {
//		// caller decides whether to retry
//	}
//	users := fetcher.Items()
//
// The sort key is forwarded verbatim to the source; no local validation happens.
package pagination
