package reconciler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	passCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "passes_total",
		Help:      "Number of completed reconciliation passes grouped by outcome.",
	}, []string{"outcome"})

	skipCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "registries_skipped_total",
		Help:      "Number of times a category registry was skipped during removal.",
	}, []string{"registry", "reason"})

	removalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "rows_removed_total",
		Help:      "Number of stale rows removed per category registry.",
	}, []string{"registry"})

	upsertCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "rows_upserted_total",
		Help:      "Number of rows written per category registry, split by append vs in-place update.",
	}, []string{"registry", "op"})

	eventFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "event_record_failures_total",
		Help:      "Number of outbound events that could not be recorded.",
	}, []string{"event_type"})

	lastRelocationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailsync",
		Subsystem: "reconciler",
		Name:      "last_relocation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful relocation.",
	})
)

func init() {
	prometheus.MustRegister(passCounter, skipCounter, removalCounter, upsertCounter, eventFailureCounter, lastRelocationGauge)
}

func recordPass(outcome string) {
	passCounter.WithLabelValues(outcome).Inc()
	if outcome == ActionRelocated {
		lastRelocationGauge.Set(float64(time.Now().Unix()))
	}
}

func recordSkip(registryName, reason string) {
	skipCounter.WithLabelValues(registryName, reason).Inc()
}

func recordRemoval(registryName string) {
	removalCounter.WithLabelValues(registryName).Inc()
}

func recordUpsert(registryName string, appended bool) {
	op := "update"
	if appended {
		op = "append"
	}
	upsertCounter.WithLabelValues(registryName, op).Inc()
}

func recordEventFailure(eventType string) {
	eventFailureCounter.WithLabelValues(eventType).Inc()
}
