// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trading metrics
	OrdersCreated    *prometheus.CounterVec
	OrdersCancelled  prometheus.Counter
	TradesExecuted   prometheus.Counter
	TradeVolumeSats  prometheus.Counter
	TreasurySales    prometheus.Counter
	MatchingRuns     *prometheus.CounterVec
	MatchingDuration prometheus.Histogram
	MatchingErrors   prometheus.Counter

	// Dividend metrics
	DistributionsRecorded prometheus.Counter
	ClaimsCreated         prometheus.Counter
	DistributedSats       prometheus.Counter
	DustSats              prometheus.Counter

	// Payout metrics
	ClaimsPaid  *prometheus.CounterVec
	PaidOutSats prometheus.Counter

	// Reconciliation metrics
	ReconcileRuns       *prometheus.CounterVec
	ReconcileDuration   prometheus.Histogram
	DiscrepanciesLatest prometheus.Gauge

	// External service metrics
	OracleCallLatency  *prometheus.HistogramVec
	PaymentCallLatency prometheus.Histogram

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_market"
	}

	return &Metrics{
		// Trading metrics
		OrdersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "orders_created_total",
			Help:      "Total number of orders created by side",
		}, []string{"side"}),
		OrdersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "orders_cancelled_total",
			Help:      "Total number of orders cancelled",
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed",
		}),
		TradeVolumeSats: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "trade_volume_sats_total",
			Help:      "Total traded volume in satoshis",
		}),
		TreasurySales: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "treasury_sales_total",
			Help:      "Total number of treasury purchases",
		}),
		MatchingRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "matching_runs_total",
			Help:      "Total number of matching runs by status",
		}, []string{"status"}),
		MatchingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "matching_duration_seconds",
			Help:      "Matching run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		MatchingErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "matching_pairing_errors_total",
			Help:      "Total number of matched pairings that failed to apply",
		}),

		// Dividend metrics
		DistributionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend",
			Name:      "distributions_recorded_total",
			Help:      "Total number of dividend distributions recorded",
		}),
		ClaimsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend",
			Name:      "claims_created_total",
			Help:      "Total number of dividend claims created",
		}),
		DistributedSats: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend",
			Name:      "distributed_sats_total",
			Help:      "Total satoshis allocated to claims",
		}),
		DustSats: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend",
			Name:      "dust_sats_total",
			Help:      "Total satoshis retained as distribution dust",
		}),

		// Payout metrics
		ClaimsPaid: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "claims_total",
			Help:      "Total number of claim payout attempts by status",
		}, []string{"status"}),
		PaidOutSats: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "paid_sats_total",
			Help:      "Total satoshis paid out over the payment rail",
		}),

		// Reconciliation metrics
		ReconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by result",
		}, []string{"result"}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconciliation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DiscrepanciesLatest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "discrepancies",
			Help:      "Discrepancy count reported by the latest reconciliation run",
		}),

		// External service metrics
		OracleCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "oracle_call_latency_seconds",
			Help:      "Chain oracle call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		PaymentCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "call_latency_seconds",
			Help:      "Payment rail call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// HTTP metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOrderCreated increments the orders created counter.
func RecordOrderCreated(side string) {
	DefaultMetrics.OrdersCreated.WithLabelValues(side).Inc()
}

// RecordOrderCancelled increments the orders cancelled counter.
func RecordOrderCancelled() {
	DefaultMetrics.OrdersCancelled.Inc()
}

// RecordTrades records executed trades and their volume.
func RecordTrades(count int, volumeSats int64) {
	DefaultMetrics.TradesExecuted.Add(float64(count))
	DefaultMetrics.TradeVolumeSats.Add(float64(volumeSats))
}

// RecordTreasurySale increments the treasury purchase counter.
func RecordTreasurySale() {
	DefaultMetrics.TreasurySales.Inc()
}

// RecordMatchingRun records one matching run.
func RecordMatchingRun(status string, durationSeconds float64, pairingErrors int) {
	DefaultMetrics.MatchingRuns.WithLabelValues(status).Inc()
	DefaultMetrics.MatchingDuration.Observe(durationSeconds)
	DefaultMetrics.MatchingErrors.Add(float64(pairingErrors))
}

// RecordDistribution records one recorded dividend distribution.
func RecordDistribution(claims int, distributedSats, dustSats int64) {
	DefaultMetrics.DistributionsRecorded.Inc()
	DefaultMetrics.ClaimsCreated.Add(float64(claims))
	DefaultMetrics.DistributedSats.Add(float64(distributedSats))
	DefaultMetrics.DustSats.Add(float64(dustSats))
}

// RecordClaimPaid records one claim payout attempt.
func RecordClaimPaid(status string, amountSats int64) {
	DefaultMetrics.ClaimsPaid.WithLabelValues(status).Inc()
	if status == "paid" {
		DefaultMetrics.PaidOutSats.Add(float64(amountSats))
	}
}

// RecordReconcileRun records one reconciliation run.
func RecordReconcileRun(result string, durationSeconds float64, discrepancies int) {
	DefaultMetrics.ReconcileRuns.WithLabelValues(result).Inc()
	DefaultMetrics.ReconcileDuration.Observe(durationSeconds)
	DefaultMetrics.DiscrepanciesLatest.Set(float64(discrepancies))
}

// RecordOracleLatency records chain oracle call latency.
func RecordOracleLatency(method string, seconds float64) {
	DefaultMetrics.OracleCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordPaymentLatency records payment rail call latency.
func RecordPaymentLatency(seconds float64) {
	DefaultMetrics.PaymentCallLatency.Observe(seconds)
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
