// Package observability holds cross-cutting watermark gauges.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	editProcessedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailsync",
		Subsystem: "registry",
		Name:      "last_edit_processed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent edit notification fully processed.",
	})
	repairGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailsync",
		Subsystem: "registry",
		Name:      "last_repair_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed repair run.",
	})
)

func init() {
	prometheus.MustRegister(editProcessedGauge, repairGauge)
}

// RecordEditProcessed updates the edit watermark gauge.
func RecordEditProcessed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	editProcessedGauge.Set(float64(ts.Unix()))
}

// RecordRepairRun updates the repair watermark gauge.
func RecordRepairRun(ts time.Time) {
	if ts.IsZero() {
		return
	}
	repairGauge.Set(float64(ts.Unix()))
}
