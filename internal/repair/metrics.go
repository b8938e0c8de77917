package repair

import "github.com/prometheus/client_golang/prometheus"

var (
	runCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "repair",
		Name:      "runs_total",
		Help:      "Number of completed repair runs.",
	})

	actionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailsync",
		Subsystem: "repair",
		Name:      "actions_total",
		Help:      "Repair actions taken, grouped by kind.",
	}, []string{"action"})

	dirtyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailsync",
		Subsystem: "repair",
		Name:      "last_run_dirty",
		Help:      "1 when the most recent run had to repair something, 0 when clean.",
	})
)

func init() {
	prometheus.MustRegister(runCounter, actionCounter, dirtyGauge)
}

func recordRun(report Report) {
	runCounter.Inc()
	actionCounter.WithLabelValues("stale_removed").Add(float64(report.StaleRemoved))
	actionCounter.WithLabelValues("duplicates_removed").Add(float64(report.DuplicatesRemoved))
	actionCounter.WithLabelValues("misplaced_removed").Add(float64(report.MisplacedRemoved))
	actionCounter.WithLabelValues("refreshed").Add(float64(report.Refreshed))
	actionCounter.WithLabelValues("placed").Add(float64(report.Placed))
	if report.Clean() {
		dirtyGauge.Set(0)
	} else {
		dirtyGauge.Set(1)
	}
}
