package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	requeueCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "dlq",
		Name:      "requeued_total",
		Help:      "Number of DLQ entries successfully re-queued into the outbox.",
	}, []string{"topic"})

	retryFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "dlq",
		Name:      "retry_failures_total",
		Help:      "Number of DLQ retry attempts that failed and were rescheduled.",
	}, []string{"topic"})

	quarantineCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "dlq",
		Name:      "quarantined_total",
		Help:      "Number of DLQ entries quarantined after exhausting retries.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(requeueCounter, retryFailureCounter, quarantineCounter)
}

func recordRequeue(topic string) {
	requeueCounter.WithLabelValues(topic).Inc()
}

func recordRetryFailure(topic string) {
	retryFailureCounter.WithLabelValues(topic).Inc()
}

func recordQuarantine(topic string) {
	quarantineCounter.WithLabelValues(topic).Inc()
}
