package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_ledger_entries_total",
		Help: "Ledger entries applied, by kind and resulting status",
	}, []string{"kind", "status"})

	casRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_cas_retries_total",
		Help: "Balance updates retried after a concurrent modification",
	})

	operationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_operation_duration_seconds",
		Help:    "Wallet mutation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})
)
