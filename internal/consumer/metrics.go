package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "consumer",
		Name:      "notifications_handled_total",
		Help:      "Edit notifications consumed, reconciled, and committed.",
	}, []string{"topic", "event_type"})

	handlerFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "consumer",
		Name:      "handler_failures_total",
		Help:      "Reconciliation or audit failures that left the message uncommitted for redelivery.",
	}, []string{"topic", "event_type"})

	undecodableCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "consumer",
		Name:      "undecodable_messages_total",
		Help:      "Messages committed without processing because the payload or headers could not be decoded.",
	}, []string{"topic"})

	lastNotificationGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trailsync",
		Subsystem: "consumer",
		Name:      "last_notification_timestamp_seconds",
		Help:      "Kafka timestamp of the most recent committed edit notification, per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(handledCounter, handlerFailureCounter, undecodableCounter, lastNotificationGauge)
}

func recordProcessed(msg Message) {
	handledCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastNotificationGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerFailureCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	undecodableCounter.WithLabelValues(topic).Inc()
}
