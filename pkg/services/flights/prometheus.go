package flights

import "github.com/prometheus/client_golang/prometheus"

var flightRecords = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Help:      "Number of flight records cached",
		Name:      "flight_records",
		Namespace: "surety",
	},
)

func init() {
	prometheus.MustRegister(flightRecords)
}
