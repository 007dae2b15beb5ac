package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"inferd/pkg/types"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "gen",
			Name:      "generations_total",
			Help:      "Completed generation requests by outcome",
		},
		[]string{"outcome"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "gen",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of generations",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "gen",
			Name:      "tokens_total",
			Help:      "Tokens produced across all generations",
		},
	)

	modelLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "model",
			Name:      "load_seconds",
			Help:      "Model load durations",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	scanEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "scan",
			Name:      "entries_total",
			Help:      "Filesystem entries visited by scans",
		},
		[]string{"kind"},
	)

	scanMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "scan",
			Name:      "matched_total",
			Help:      "Files matched (or deleted) by scans",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		generationsTotal, generationDuration, tokensTotal,
		modelLoadSeconds, scanEntriesTotal, scanMatchedTotal,
	)
}

func observeGeneration(outcome string, seconds float64, tokens int) {
	generationsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		generationDuration.Observe(seconds)
	}
	if tokens > 0 {
		tokensTotal.Add(float64(tokens))
	}
}

func observeScan(kind string, stats types.ScanStats) {
	scanEntriesTotal.WithLabelValues(kind).Add(float64(stats.Scanned))
	scanMatchedTotal.WithLabelValues(kind).Add(float64(stats.Matched))
}
