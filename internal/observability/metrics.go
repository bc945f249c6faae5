// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the radar.
type Metrics struct {
	// Ingestion metrics
	DiscoveryTicks    *prometheus.CounterVec
	StrategyFailures  *prometheus.CounterVec
	NewTokens         prometheus.Counter
	TokensTracked     prometheus.Gauge
	TokensEvicted     prometheus.Counter
	RefreshUpdates    prometheus.Counter
	RefreshFallbacks  prometheus.Counter
	ConsecutiveErrors prometheus.Gauge

	// Ranking and alerts
	HighMomentumTokens prometheus.Gauge
	VolumeAlerts       prometheus.Counter
	NotificationsSent  *prometheus.CounterVec

	// Payments
	PaymentVerifications *prometheus.CounterVec

	// Realtime
	WSClients prometheus.Gauge

	// Latency metrics
	RPCCallLatency       *prometheus.HistogramVec
	MarketDataLatency    *prometheus.HistogramVec
	HTTPRequestDurations *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meme_radar"
	}

	return &Metrics{
		DiscoveryTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "discovery_ticks_total",
			Help:      "Discovery ticks by outcome",
		}, []string{"outcome"}),
		StrategyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "strategy_failures_total",
			Help:      "Discovery strategy failures",
		}, []string{"strategy"}),
		NewTokens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "new_tokens_total",
			Help:      "Tokens seen for the first time",
		}),
		TokensTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens_tracked",
			Help:      "Tokens currently held by the registry",
		}),
		TokensEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens_evicted_total",
			Help:      "Tokens dropped by capacity eviction",
		}),
		RefreshUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "refresh_updates_total",
			Help:      "Market snapshots applied by refresh ticks",
		}),
		RefreshFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "refresh_fallbacks_total",
			Help:      "Refresh ticks that fell back to serial lookups",
		}),
		ConsecutiveErrors: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "consecutive_errors",
			Help:      "Consecutive discovery ticks with at least one failed strategy",
		}),
		HighMomentumTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "high_momentum_tokens",
			Help:      "Tokens in the current momentum ranking",
		}),
		VolumeAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "volume_alerts_total",
			Help:      "Volume spike alerts emitted",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notifications_total",
			Help:      "Outbound notifications by result",
		}, []string{"result"}),
		PaymentVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Payment verification attempts by status",
		}, []string{"status"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_duration_seconds",
			Help:      "Solana RPC call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		MarketDataLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_duration_seconds",
			Help:      "Aggregator request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "result"}),
		HTTPRequestDurations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDiscoveryTick records the outcome of a discovery tick: ok, partial or failed.
func RecordDiscoveryTick(outcome string) {
	DefaultMetrics.DiscoveryTicks.WithLabelValues(outcome).Inc()
}

func RecordStrategyFailure(strategy string) {
	DefaultMetrics.StrategyFailures.WithLabelValues(strategy).Inc()
}

func RecordNewTokens(n int) {
	DefaultMetrics.NewTokens.Add(float64(n))
}

// UpdateRegistrySize sets the tracked tokens gauge and counts evictions.
func UpdateRegistrySize(size, evicted int) {
	DefaultMetrics.TokensTracked.Set(float64(size))
	if evicted > 0 {
		DefaultMetrics.TokensEvicted.Add(float64(evicted))
	}
}

func RecordRefresh(updated int, fallback bool) {
	DefaultMetrics.RefreshUpdates.Add(float64(updated))
	if fallback {
		DefaultMetrics.RefreshFallbacks.Inc()
	}
}

func SetConsecutiveErrors(n int64) {
	DefaultMetrics.ConsecutiveErrors.Set(float64(n))
}

func SetHighMomentum(n int) {
	DefaultMetrics.HighMomentumTokens.Set(float64(n))
}

func RecordVolumeAlert() {
	DefaultMetrics.VolumeAlerts.Inc()
}

// RecordNotification records an outbound notification: sent, dropped or failed.
func RecordNotification(result string) {
	DefaultMetrics.NotificationsSent.WithLabelValues(result).Inc()
}

func RecordPaymentVerification(status string) {
	DefaultMetrics.PaymentVerifications.WithLabelValues(status).Inc()
}

func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordMarketDataRequest records aggregator latency by endpoint and result.
func RecordMarketDataRequest(endpoint, result string, seconds float64) {
	DefaultMetrics.MarketDataLatency.WithLabelValues(endpoint, result).Observe(seconds)
}

func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequestDurations.WithLabelValues(route, code).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
