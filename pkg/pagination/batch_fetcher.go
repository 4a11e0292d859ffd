package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchConfig holds batch fetcher configuration
type BatchConfig struct {
	// Name labels metrics and log lines
	Name string
	// PageSize is sent with every request
	PageSize int
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultBatchConfig returns safe default configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Name:           "batch",
		PageSize:       50,
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// BatchFetcher fetches every page of a listing in parallel
type BatchFetcher[T any] struct {
	source PageSource[T]
	config BatchConfig
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](source PageSource[T], config BatchConfig) *BatchFetcher[T] {
	defaults := DefaultBatchConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher[T]{
		source: source,
		config: config,
	}
}

// FetchAll fetches all items of a listing sorted by sort.
// The first page tells the total; remaining pages are fetched concurrently and the
// result keeps endpoint order. On error the contiguous prefix of pages fetched so
// far is returned together with the error, which is left to the caller to report.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, sort string) ([]T, error) {
	start := time.Now()

	first, err := bf.fetchPage(ctx, 0, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	totalPages := pageCount(first.Total, bf.config.PageSize)

	log.Debug().
		Str("fetcher", bf.config.Name).
		Int("total_items", first.Total).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	if totalPages <= 1 {
		log.Debug().
			Str("fetcher", bf.config.Name).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, nil
	}

	pages := make([]pageSlot[T], totalPages)
	pages[0] = pageSlot[T]{items: first.Items, done: true}

	var (
		fetchedMu sync.Mutex
		fetched   = 1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for pageNum := 1; pageNum < totalPages; pageNum++ {
		g.Go(func() error {
			page, err := bf.fetchPage(gctx, pageNum, sort)
			if err != nil {
				log.Debug().
					Err(err).
					Str("fetcher", bf.config.Name).
					Int("page", pageNum).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", pageNum, err)
			}

			// each goroutine owns its slot
			pages[pageNum] = pageSlot[T]{items: page.Items, done: true}

			fetchedMu.Lock()
			fetched++
			progress := fetched
			fetchedMu.Unlock()

			// Progress logging every 50 pages
			if progress%50 == 0 {
				log.Debug().
					Int("fetched", progress).
					Int("total", totalPages).
					Float64("progress_pct", float64(progress)/float64(totalPages)*100).
					Msg("Fetch progress")
			}
			return nil
		})
	}

	waitErr := g.Wait()
	items := flatten(pages)

	if waitErr != nil {
		log.Debug().
			Err(waitErr).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Batch fetch failed - returning partial results")
		return items, fmt.Errorf("batch fetch (partial data: %d/%d pages): %w", fetched, totalPages, waitErr)
	}

	log.Debug().
		Str("fetcher", bf.config.Name).
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, pageNum int, sort string) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	page, err := bf.source.FetchPage(pageCtx, PageRequest{
		Page:     pageNum,
		PageSize: bf.config.PageSize,
		Sort:     sort,
	})
	if err != nil {
		PageLoads.WithLabelValues(bf.config.Name, "batch", "error").Inc()
		return Page[T]{}, err
	}
	PageLoads.WithLabelValues(bf.config.Name, "batch", "ok").Inc()
	return page, nil
}

type pageSlot[T any] struct {
	items []T
	done  bool
}

// flatten concatenates pages up to the first missing one.
func flatten[T any](pages []pageSlot[T]) []T {
	var items []T
	for _, page := range pages {
		if !page.done {
			break
		}
		items = append(items, page.items...)
	}
	return items
}

// pageCount returns the number of pages needed to hold total items.
func pageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
