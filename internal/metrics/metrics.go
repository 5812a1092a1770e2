// Package metrics exposes Prometheus collectors for upstream fetches and
// refresh cycles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbon_dashboard"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeAborted = "aborted"
)

var (
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetch_total",
		Help:      "News source fetches by outcome.",
	}, []string{"source", "outcome"})

	sourceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_fetch_duration_seconds",
		Help:      "Latency of news source fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	registryFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registry_fetch_total",
		Help:      "Project registry fetches by outcome.",
	}, []string{"registry", "outcome"})

	refreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_cycles_total",
		Help:      "View load and refresh cycles by trigger and outcome.",
	}, []string{"view", "trigger", "outcome"})

	articles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "articles",
		Help:      "Articles held by the news view, per source.",
	}, []string{"source"})
)

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func ObserveSourceFetch(source string, took time.Duration, err error) {
	sourceFetches.WithLabelValues(source, outcome(err)).Inc()
	sourceDuration.WithLabelValues(source).Observe(took.Seconds())
}

func ObserveRegistryFetch(registry string, err error) {
	registryFetches.WithLabelValues(registry, outcome(err)).Inc()
}

// ObserveCycle records one view cycle. An aborted cycle passes OutcomeAborted explicitly.
func ObserveCycle(view, trigger, result string) {
	refreshCycles.WithLabelValues(view, trigger, result).Inc()
}

// CycleOutcome maps a cycle error to its outcome label.
func CycleOutcome(err error) string { return outcome(err) }

// SetArticleCounts replaces the per-source article gauge.
func SetArticleCounts(counts map[string]int) {
	articles.Reset()
	for source, n := range counts {
		articles.WithLabelValues(source).Set(float64(n))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
