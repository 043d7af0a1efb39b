package errors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errwatch_reported_total",
			Help: "Total number of reported errors by level",
		},
		[]string{"level"},
	)

	activeErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "errwatch_active_errors",
			Help: "Number of errors currently held in the registry",
		},
	)

	purgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "errwatch_purged_total",
			Help: "Total number of errors removed by the expiry sweep",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errwatch_notifications_total",
			Help: "Total number of debounced notifications by outcome",
		},
		[]string{"status"},
	)

	relayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errwatch_relay_total",
			Help: "Total number of relay pushes by outcome",
		},
		[]string{"status"},
	)
)

const (
	statusDelivered  = "delivered"
	statusNoListener = "no_listener"
	statusFailed     = "failed"
)
