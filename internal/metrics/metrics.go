// Package metrics provides Prometheus metrics for order line resolution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesResolved counts automatic resolutions by resulting status
	LinesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "resolve",
			Name:      "lines_total",
			Help:      "Total number of resolved order lines by status",
		},
		[]string{"status"},
	)

	// LineReasons counts why lines were sent to review
	LineReasons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "resolve",
			Name:      "review_reasons_total",
			Help:      "Total number of review reasons attached to lines",
		},
		[]string{"reason"},
	)

	// MatchScore tracks the top candidate score of each line
	MatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faxorder",
			Subsystem: "resolve",
			Name:      "top_score",
			Help:      "Top candidate score per resolved line",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		},
	)

	// PriceResolutions counts which price source was applied
	PriceResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "pricing",
			Name:      "resolutions_total",
			Help:      "Total number of price resolutions by source",
		},
		[]string{"source"},
	)

	// AliasRegistrations counts alias registrations by outcome
	AliasRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "alias",
			Name:      "registrations_total",
			Help:      "Total number of alias registrations by outcome",
		},
		[]string{"outcome"}, // created | existing | conflict
	)

	// Confirmations counts human confirmations
	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "resolve",
			Name:      "confirmations_total",
			Help:      "Total number of confirmed lines by whether the operator changed the product",
		},
		[]string{"changed"},
	)

	// HTTPPanics counts handler panics turned into 500 responses
	HTTPPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "faxorder",
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Total number of recovered handler panics",
		},
	)

	// HTTPDuration tracks request latency by route pattern
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faxorder",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
