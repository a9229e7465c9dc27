package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "dormitory_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	settlementCallbacks *prometheus.CounterVec

	invoicesGenerated *prometheus.CounterVec

	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
)

// Init registers billing/settlement metrics and DB-backed gauges. Calls
// before Init are no-ops, so services stay usable in tests.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		settlementCallbacks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_callbacks_total",
				Help: "Gateway callbacks by provider, channel and outcome",
			},
			[]string{"provider", "channel", "outcome"},
		)
		invoicesGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_invoices_generated_total",
				Help: "Invoices created by the billing engine per source",
			},
			[]string{"source"},
		)
		gatewayRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_requests_total",
				Help: "Outbound gateway API calls by operation and result",
			},
			[]string{"operation", "result"},
		)
		gatewayLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "gateway_request_duration_seconds",
				Help:    "Outbound gateway API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		prometheus.MustRegister(
			settlementCallbacks,
			invoicesGenerated,
			gatewayRequests,
			gatewayLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncSettlementCallback counts one handled callback.
func IncSettlementCallback(provider, channel, outcome string) {
	if provider == "" {
		provider = "unknown"
	}
	if channel == "" {
		channel = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if settlementCallbacks != nil {
		settlementCallbacks.WithLabelValues(provider, channel, outcome).Inc()
	}
}

// AddInvoicesGenerated adds count invoices for source.
func AddInvoicesGenerated(source string, count int) {
	if count <= 0 {
		return
	}
	if invoicesGenerated != nil {
		invoicesGenerated.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveGatewayRequest records one outbound call.
func ObserveGatewayRequest(operation string, err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if gatewayRequests != nil {
		gatewayRequests.WithLabelValues(operation, result).Inc()
	}
	if gatewayLatency != nil {
		gatewayLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}
