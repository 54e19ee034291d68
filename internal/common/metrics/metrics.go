// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgar_scans_total",
			Help: "Total number of scan passes by discovery source",
		},
		[]string{"source"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "edgar_scan_duration_seconds",
			Help: "Duration of one scan pass in seconds",
		},
		[]string{"source"},
	)

	IssuerFetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgar_issuer_fetch_outcomes_total",
			Help: "Per-issuer structured fetch outcomes (fresh, cache_hit, error, not_found)",
		},
		[]string{"outcome"},
	)

	FilingsDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgar_filings_discovered_total",
			Help: "New filing records created by discovery source",
		},
		[]string{"source"},
	)

	FeedEntriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgar_feed_entries_dropped_total",
			Help: "Broad feed entries dropped before novelty detection",
		},
		[]string{"reason"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_sent_total",
			Help: "Successful device deliveries by transport",
		},
		[]string{"transport"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_failed_total",
			Help: "Failed device deliveries by transport",
		},
		[]string{"transport"},
	)

	TokensPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_tokens_pruned_total",
			Help: "Dead device registrations removed after delivery failures",
		},
	)
)
