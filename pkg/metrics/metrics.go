package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railbridge_watcher_poll_ticks_total",
		Help: "Poll ticks executed by the transaction watcher.",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "railbridge_watcher_active_sessions",
		Help: "Monitoring sessions currently polling the ledger.",
	})

	Confirmations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railbridge_watcher_confirmations_total",
		Help: "Ledger payments confirmed by the watcher.",
	})

	PayoutSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railbridge_settlement_submissions_total",
		Help: "Payout submissions to the mobile-money provider.",
	}, []string{"outcome"})

	PayoutRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railbridge_settlement_retries_total",
		Help: "Payout submission retries scheduled.",
	})

	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railbridge_settlement_callbacks_total",
		Help: "Provider callbacks received, by disposition.",
	}, []string{"disposition"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railbridge_status_transitions_total",
		Help: "Unified payment status transitions.",
	}, []string{"status"})
)
