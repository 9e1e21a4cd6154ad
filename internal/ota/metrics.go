package ota

import "github.com/prometheus/client_golang/prometheus"

var (
	stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deskhog",
		Subsystem: "ota",
		Name:      "state",
		Help:      "Update procedure state as the legacy numeric code.",
	})
	progressGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deskhog",
		Subsystem: "ota",
		Name:      "progress_percent",
		Help:      "Progress of the current update phase.",
	})
	failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskhog",
		Subsystem: "ota",
		Name:      "failures_total",
		Help:      "Failed checks and updates by reason.",
	}, []string{"reason"})
	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "deskhog",
		Subsystem: "ota",
		Name:      "staged_bytes_total",
		Help:      "Firmware bytes written to the staging area.",
	})
)

func init() {
	prometheus.MustRegister(stateGauge, progressGauge, failuresTotal, bytesWritten)
}

func observeStatus(s Status) {
	stateGauge.Set(float64(s.Code()))
	progressGauge.Set(float64(s.Progress))
}
