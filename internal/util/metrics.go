package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_updates_total",
		Help: "Total number of order status updates by target status",
	}, []string{"status"})

	StockDecrementConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_decrement_conflicts_total",
		Help: "Conditional stock decrements that matched no row",
	})

	CartClearFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_clear_failures_total",
		Help: "Carts that could not be cleared after a placed order",
	})

	DuplicateCheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_duplicate_checkouts_total",
		Help: "Checkout requests answered from an idempotency key",
	})

	PlaceOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_place_order_latency_seconds",
		Help:    "Latency of the place order workflow",
		Buckets: prometheus.DefBuckets,
	})

	HistoryEventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_history_events_recorded_total",
		Help: "Order events written to the status history",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
