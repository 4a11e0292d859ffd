package pagination

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrLoadInProgress is returned when a load is requested while another is outstanding.
	ErrLoadInProgress = errors.New("page load already in progress")

	// ErrNoMorePages is returned by LoadNextPage once end-of-data has been reached.
	ErrNoMorePages = errors.New("no more pages")

	// ErrSessionReset is returned when Reset ran while the load was outstanding.
	// The response is discarded.
	ErrSessionReset = errors.New("session reset during page load")
)

// DefaultPageSize matches the page size the listing endpoint is usually queried with.
const DefaultPageSize = 10

// FetcherConfig holds paged fetcher configuration.
type FetcherConfig struct {
	// Name labels metrics and log lines (e.g. "users").
	Name string
	// PageSize is sent with every request.
	PageSize int
}

// DefaultFetcherConfig returns the default configuration.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Name:     "default",
		PageSize: DefaultPageSize,
	}
}

// State is a point-in-time copy of a fetcher's state.
type State[T any] struct {
	Items     []T
	PageIndex int
	HasMore   bool
	Total     int
}

// PagedFetcher accumulates pages of a listing for incremental display.
//
// State changes only after a successful response: a failed load leaves items, page
// index and the end-of-data flag untouched. At most one load runs at a time; a
// concurrent call fails fast with ErrLoadInProgress.
type PagedFetcher[T any] struct {
	source PageSource[T]
	config FetcherConfig
	logger zerolog.Logger

	mu        sync.Mutex
	items     []T
	pageIndex int
	hasMore   bool
	total     int
	inFlight  bool
	session   uint64
}

// NewPagedFetcher creates a fetcher with an empty session.
func NewPagedFetcher[T any](source PageSource[T], config FetcherConfig) *PagedFetcher[T] {
	if source == nil {
		panic("page source cannot be nil")
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Name == "" {
		config.Name = "default"
	}

	return &PagedFetcher[T]{
		source:  source,
		config:  config,
		logger:  log.With().Str("component", "paged-fetcher").Str("fetcher", config.Name).Logger(),
		hasMore: true,
	}
}

// LoadFirstPage starts a new session from page 0 with the given sort key.
// On success the accumulated items are replaced by the first page and the next
// LoadNextPage requests page 1.
func (f *PagedFetcher[T]) LoadFirstPage(ctx context.Context, sort string) (Page[T], error) {
	session, _, err := f.acquire("first", false)
	if err != nil {
		return Page[T]{}, err
	}

	page, err := f.fetch(ctx, 0, sort)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false

	if err := f.settle("first", session, err); err != nil {
		return Page[T]{}, err
	}

	f.session++
	f.items = append(make([]T, 0, len(page.Items)), page.Items...)
	f.pageIndex = 1
	f.total = page.Total
	f.hasMore = len(f.items) < page.Total
	f.record("first", len(page.Items))

	return page, nil
}

// LoadNextPage requests the current page index, appends its items and advances the index.
func (f *PagedFetcher[T]) LoadNextPage(ctx context.Context, sort string) (Page[T], error) {
	session, index, err := f.acquire("next", true)
	if err != nil {
		return Page[T]{}, err
	}

	page, err := f.fetch(ctx, index, sort)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false

	if err := f.settle("next", session, err); err != nil {
		return Page[T]{}, err
	}

	f.items = append(f.items, page.Items...)
	f.pageIndex = index + 1
	f.total = page.Total
	// a shrinking total can leave us past the end; that still terminates the session
	f.hasMore = len(f.items) < page.Total
	f.record("next", len(page.Items))

	return page, nil
}

// Reset starts a new, empty session.
// A load outstanding at the time of the reset completes with ErrSessionReset.
func (f *PagedFetcher[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.session++
	f.items = nil
	f.pageIndex = 0
	f.total = 0
	f.hasMore = true
	AccumulatedItems.WithLabelValues(f.config.Name).Set(0)
}

// Items returns a copy of the accumulated items in arrival order.
func (f *PagedFetcher[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.items...)
}

// Len returns the number of accumulated items.
func (f *PagedFetcher[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// PageIndex returns the index the next LoadNextPage will request.
func (f *PagedFetcher[T]) PageIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageIndex
}

// HasMore reports whether more items are available in the current session.
func (f *PagedFetcher[T]) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Total returns the total reported by the most recent successful response.
func (f *PagedFetcher[T]) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Loading reports whether a load is outstanding.
func (f *PagedFetcher[T]) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Snapshot returns a consistent copy of the whole state.
func (f *PagedFetcher[T]) Snapshot() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State[T]{
		Items:     append([]T(nil), f.items...),
		PageIndex: f.pageIndex,
		HasMore:   f.hasMore,
		Total:     f.total,
	}
}

// acquire marks a load as in flight and returns the session and page index it runs against.
func (f *PagedFetcher[T]) acquire(op string, requireMore bool) (uint64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight {
		PageLoads.WithLabelValues(f.config.Name, op, "skipped").Inc()
		return 0, 0, ErrLoadInProgress
	}
	if requireMore && !f.hasMore {
		PageLoads.WithLabelValues(f.config.Name, op, "skipped").Inc()
		return 0, 0, ErrNoMorePages
	}
	f.inFlight = true
	return f.session, f.pageIndex, nil
}

// settle decides whether a finished fetch may touch state. Must be called with f.mu held.
func (f *PagedFetcher[T]) settle(op string, session uint64, err error) error {
	if err != nil {
		PageLoads.WithLabelValues(f.config.Name, op, "error").Inc()
		return err
	}
	if session != f.session {
		PageLoads.WithLabelValues(f.config.Name, op, "stale").Inc()
		return ErrSessionReset
	}
	return nil
}

func (f *PagedFetcher[T]) fetch(ctx context.Context, index int, sort string) (Page[T], error) {
	req := PageRequest{
		Page:     index,
		PageSize: f.config.PageSize,
		Sort:     sort,
	}
	return f.source.FetchPage(ctx, req)
}

// record must be called with f.mu held.
func (f *PagedFetcher[T]) record(op string, received int) {
	PageLoads.WithLabelValues(f.config.Name, op, "ok").Inc()
	AccumulatedItems.WithLabelValues(f.config.Name).Set(float64(len(f.items)))

	f.logger.Debug().
		Str("op", op).
		Int("received", received).
		Int("accumulated", len(f.items)).
		Int("total", f.total).
		Int("next_page", f.pageIndex).
		Bool("has_more", f.hasMore).
		Msg("Page loaded")
}
