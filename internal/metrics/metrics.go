package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointlens_events_fetched_total",
		Help: "Total number of raw ledger events read from the event source.",
	})

	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointlens_events_deduplicated_total",
		Help: "Total number of duplicate ledger events dropped before aggregation.",
	})

	EventsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointlens_events_classified_total",
		Help: "Total number of classified events, labelled by kind and matching strategy.",
	}, []string{"kind", "matcher"})

	AmountFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointlens_amount_fallbacks_total",
		Help: "Events whose amount was replaced by the configured fallback constant.",
	}, []string{"kind"})

	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointlens_source_errors_total",
		Help: "Event source failures converted to empty analytics results, labelled by query.",
	}, []string{"query"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pointlens_query_duration_ms",
		Help:    "Analytics query latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"query"})

	ResolveRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointlens_resolve_requests_total",
		Help: "Name resolution requests, labelled by outcome (hit, shared, fetched, error).",
	}, []string{"outcome"})

	ResolveFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointlens_resolve_fetches_total",
		Help: "Remote name fetches issued by the resolution cache, labelled by status.",
	}, []string{"status"})

	ResolvedNames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pointlens_resolved_names",
		Help: "Number of names currently held by the resolution cache.",
	})
)
