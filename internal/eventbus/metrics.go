package eventbus

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Events accepted by the bus by kind.",
		},
		[]string{"kind"},
	)
	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "eventbus",
			Name:      "dropped_total",
			Help:      "Events dropped because the bus channel was full.",
		},
		[]string{"kind"},
	)
	subscriberPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "eventbus",
			Name:      "subscriber_panics_total",
			Help:      "Subscriber callbacks that panicked and were recovered.",
		},
	)
)

func init() {
	prometheus.MustRegister(publishedTotal, droppedTotal, subscriberPanics)
}
