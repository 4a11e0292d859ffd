package pagination

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidPageRequest is returned for a negative page index or a non-positive page size.
var ErrInvalidPageRequest = errors.New("invalid page request")

// PageRequest identifies one page of a listing.
type PageRequest struct {
	// Page is the zero-based page index.
	Page int
	// PageSize is the maximum number of items per page.
	PageSize int
	// Sort is an opaque sort key forwarded to the endpoint.
	Sort string
}

// Validate checks the numeric bounds of the request. Sort is not inspected.
func (r PageRequest) Validate() error {
	if r.Page < 0 {
		return fmt.Errorf("%w: page must be >= 0 (got %d)", ErrInvalidPageRequest, r.Page)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", ErrInvalidPageRequest, r.PageSize)
	}
	return nil
}

// Page is one slice of a listing.
type Page[T any] struct {
	// Items in endpoint order.
	Items []T
	// Total is the number of items matching the current sort/filter, not just this page.
	Total int
}

// PageSource fetches single pages. The listing client implements it.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, req PageRequest) (Page[T], error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// FetchPage calls f.
func (f PageSourceFunc[T]) FetchPage(ctx context.Context, req PageRequest) (Page[T], error) {
	return f(ctx, req)
}
