package oracle

import "github.com/prometheus/client_golang/prometheus"

// Metrics used in monitoring service.
var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of contract notifications received",
			Name:      "events_total",
			Namespace: "surety",
		},
		[]string{"name"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of oracle responses submitted",
			Name:      "submissions_total",
			Namespace: "surety",
		},
		[]string{"result"},
	)
	registeredOracles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of oracles with known index assignment",
			Name:      "registered_oracles",
			Namespace: "surety",
		},
	)
)

func init() {
	prometheus.MustRegister(
		eventsTotal,
		submissionsTotal,
		registeredOracles,
	)
}
