package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	signatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_signature_failures_total",
		Help: "Rejected provider signatures",
	}, []string{"path"})

	ordersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_orders_total",
		Help: "Recharge orders by outcome",
	}, []string{"outcome"})

	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhooks_total",
		Help: "Verified webhook notifications by event",
	}, []string{"event"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_provider_request_duration_seconds",
		Help:    "Payment provider call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})
)
