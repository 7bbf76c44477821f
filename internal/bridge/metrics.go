package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marathon_slack_events_received_total",
			Help: "Total Marathon events received by type.",
		},
		[]string{"type"},
	)
	eventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marathon_slack_events_forwarded_total",
			Help: "Total Marathon events forwarded to Slack by type.",
		},
		[]string{"type"},
	)
	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marathon_slack_events_dropped_total",
			Help: "Total Marathon events dropped by the filter gate, by reason.",
		},
		[]string{"reason"},
	)
)
