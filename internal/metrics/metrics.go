// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline. Collectors are registered once at init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regwatch",
		Name:      "events_found_total",
		Help:      "Candidate events fetched per source.",
	}, []string{"source"})

	EventsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regwatch",
		Name:      "events_suppressed_total",
		Help:      "Events dropped as duplicates within the dedup window.",
	}, []string{"source"})

	EventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regwatch",
		Name:      "events_persisted_total",
		Help:      "Events written to storage per source.",
	}, []string{"source"})

	RunFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regwatch",
		Name:      "run_failures_total",
		Help:      "Pipeline runs that failed per source.",
	}, []string{"source"})

	SummaryCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regwatch",
		Name:      "summary_calls_total",
		Help:      "AI summarizer invocations (including failed calls).",
	})

	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "regwatch",
		Name:      "summary_quota_remaining",
		Help:      "Summarization slots left in the current UTC day.",
	})
)
