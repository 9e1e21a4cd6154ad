package actions

import "github.com/prometheus/client_golang/prometheus"

var (
	submittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "actions",
			Name:      "submitted_total",
			Help:      "Actions accepted into the queue by kind.",
		},
		[]string{"kind"},
	)
	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "actions",
			Name:      "rejected_total",
			Help:      "Action submissions rejected by reason.",
		},
		[]string{"reason"},
	)
	completedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "actions",
			Name:      "completed_total",
			Help:      "Actions executed by kind and result.",
		},
		[]string{"kind", "result"},
	)
	durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deskhog",
			Subsystem: "actions",
			Name:      "duration_seconds",
			Help:      "Handler execution time by kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskhog",
			Subsystem: "actions",
			Name:      "queue_depth",
			Help:      "Actions waiting for the worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(submittedTotal, rejectedTotal, completedTotal, durationSeconds, queueDepth)
}
