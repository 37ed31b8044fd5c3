package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_orders_created_total",
		Help: "Orders persisted, by kind and channel (user or table).",
	}, []string{"kind", "channel"})

	OrderStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_order_status_transitions_total",
		Help: "Order status changes by target status.",
	}, []string{"status"})

	OrderRollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menu_order_rollbacks_total",
		Help: "Order headers deleted after a failed line insert.",
	})

	OrderRollbackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menu_order_rollback_failures_total",
		Help: "Compensating deletes that failed and left an orphaned header.",
	})

	OrderEnrichmentDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menu_order_enrichment_degraded_total",
		Help: "Created orders returned as bare headers because the read-back failed.",
	})

	AccountsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menu_accounts_closed_total",
		Help: "Table accounts closed.",
	})

	PaymentsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_payments_finalized_total",
		Help: "Table accounts paid, by payment method.",
	}, []string{"method"})

	RevenueLedgerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menu_revenue_ledger_failures_total",
		Help: "Revenue entries that failed to write after a successful payment.",
	})
)

var once sync.Once

// Init registers the lifecycle collectors on the default registry. Safe to call twice.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			OrdersCreated,
			OrderStatusTransitions,
			OrderRollbacks,
			OrderRollbackFailures,
			OrderEnrichmentDegraded,
			AccountsClosed,
			PaymentsFinalized,
			RevenueLedgerFailures,
		)
	})
}
