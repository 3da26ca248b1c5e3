package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-level metrics, registered on the default registry and exposed via
// the /metrics endpoint.
var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsmon_health_checks_total",
			Help: "Health check executions by service and resulting status",
		},
		[]string{"service", "status"},
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsmon_health_check_duration_seconds",
			Help:    "Probe execution time by service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "tier"},
	)

	TierRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsmon_tier_runs_total",
			Help: "Completed tier sweeps by tier",
		},
		[]string{"tier"},
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsmon_alerts_created_total",
			Help: "Alerts created by severity",
		},
		[]string{"severity"},
	)

	ChannelDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsmon_channel_deliveries_total",
			Help: "Alert channel delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
