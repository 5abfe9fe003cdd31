package api

import "github.com/prometheus/client_golang/prometheus"

var apiRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Help:      "Number of API requests",
		Name:      "api_requests_total",
		Namespace: "surety",
	},
	[]string{"endpoint"},
)

func init() {
	prometheus.MustRegister(apiRequests)
}
