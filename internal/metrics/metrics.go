package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashdesk_deposit_transitions_total",
			Help: "Deposit state transitions by target status and outcome",
		},
		[]string{"to", "outcome"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashdesk_gateway_requests_total",
			Help: "Cashdesk API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cashdesk_gateway_request_duration_seconds",
			Help:    "Cashdesk API call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashdesk_notifications_total",
			Help: "Chat deliveries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ArmedTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashdesk_timeout_timers_armed",
		Help: "Payment timeout timers currently armed",
	})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
