package marathon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marathon_slack_marathon_reconnects_total",
			Help: "Total reconnection attempts to the Marathon event stream.",
		},
	)
	connectedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marathon_slack_marathon_connected",
			Help: "Whether the Marathon event stream is currently connected (0 or 1).",
		},
	)
)
