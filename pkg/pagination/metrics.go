package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageLoads counts page loads by fetcher, operation and result.
	PageLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userlist_page_loads_total",
			Help: "Total number of page loads by fetcher, operation and result",
		},
		[]string{"fetcher", "op", "result"}, // op: "first", "next", "batch"; result: "ok", "error", "skipped", "stale"
	)

	// AccumulatedItems tracks how many items a paged fetcher currently holds.
	AccumulatedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "userlist_accumulated_items",
			Help: "Number of items accumulated by a paged fetcher in its current session",
		},
		[]string{"fetcher"},
	)
)
