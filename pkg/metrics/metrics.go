package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 下单与清算的核心业务指标
var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "orders_created_total",
		Help:      "Gateway orders successfully created",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "orders_rejected_total",
		Help:      "Order intents rejected before gateway call",
	}, []string{"reason"})

	WebhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "webhooks_processed_total",
		Help:      "Webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "checkout",
		Name:      "settlement_duration_seconds",
		Help:      "Time spent in the settlement transaction",
		Buckets:   prometheus.DefBuckets,
	})

	OrchestratorTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "orchestrator_tasks_total",
		Help:      "Post-settlement task results",
	}, []string{"task", "outcome"})
)
