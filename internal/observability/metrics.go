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
	// Feed metrics
	TradesIngested    prometheus.Counter
	DuplicateTrades   prometheus.Counter
	MalformedMessages *prometheus.CounterVec
	Resolutions       prometheus.Counter
	FeedReconnects    prometheus.Counter

	// Evaluation pipeline metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	WalletsClassified *prometheus.CounterVec
	WalletsSkipped    prometheus.Counter

	// Mirror metrics
	TradesCopied   prometheus.Counter
	TradesSkipped  *prometheus.CounterVec
	GateRejections *prometheus.CounterVec
	DetectionDelay prometheus.Histogram

	// Settlement metrics
	MarketsSettled prometheus.Counter
	TradesSettled  prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	LastMirroredTrade   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mirrorlab"
	}

	return &Metrics{
		// Feed metrics
		TradesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "trades_ingested_total",
			Help:      "Total number of source trades archived from the feed",
		}),
		DuplicateTrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "duplicate_trades_total",
			Help:      "Total number of duplicate feed trades absorbed",
		}),
		MalformedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "malformed_messages_total",
			Help:      "Total number of feed messages dropped by type",
		}, []string{"message_type"}),
		Resolutions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "resolutions_total",
			Help:      "Total number of market resolutions received",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}),

		// Evaluation pipeline metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Total number of evaluation cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Evaluation cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		WalletsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "wallets_classified_total",
			Help:      "Total number of wallet verdicts written by kind",
		}, []string{"kind"}),
		WalletsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "wallets_skipped_total",
			Help:      "Total number of wallets skipped for unreadable data",
		}),

		// Mirror metrics
		TradesCopied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "trades_copied_total",
			Help:      "Total number of source trades mirrored",
		}),
		TradesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "trades_skipped_total",
			Help:      "Total number of source trades skipped by outcome",
		}, []string{"outcome"}),
		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "gate_rejections_total",
			Help:      "Total number of risk gate rejections by gate",
		}, []string{"gate"}),
		DetectionDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "detection_delay_seconds",
			Help:      "Delay between source fill and mirror decision in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		}),

		// Settlement metrics
		MarketsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "markets_settled_total",
			Help:      "Total number of market resolutions applied",
		}),
		TradesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "trades_settled_total",
			Help:      "Total number of simulated trades settled",
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful evaluation cycle",
		}),
		LastMirroredTrade: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_mirrored_trade_timestamp",
			Help:      "Unix timestamp of the last mirrored trade",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeIngested increments the trades ingested counter.
func RecordTradeIngested() {
	DefaultMetrics.TradesIngested.Inc()
}

// RecordDuplicateTrade increments the duplicate trades counter.
func RecordDuplicateTrade() {
	DefaultMetrics.DuplicateTrades.Inc()
}

// RecordMalformedMessage records a dropped feed message.
func RecordMalformedMessage(messageType string) {
	DefaultMetrics.MalformedMessages.WithLabelValues(messageType).Inc()
}

// RecordResolution increments the resolutions counter.
func RecordResolution() {
	DefaultMetrics.Resolutions.Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordCycle records an evaluation cycle outcome.
func RecordCycle(status string, durationSeconds float64, completedAt int64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
	if status == "ok" {
		DefaultMetrics.LastSuccessfulCycle.Set(float64(completedAt))
	}
}

// RecordClassification records one wallet verdict.
func RecordClassification(kind string) {
	DefaultMetrics.WalletsClassified.WithLabelValues(kind).Inc()
}

// RecordWalletSkipped increments the skipped wallets counter.
func RecordWalletSkipped() {
	DefaultMetrics.WalletsSkipped.Inc()
}

// RecordTradeCopied records a mirrored trade and its detection delay.
func RecordTradeCopied(detectionSeconds float64, copiedAt int64) {
	DefaultMetrics.TradesCopied.Inc()
	DefaultMetrics.DetectionDelay.Observe(detectionSeconds)
	DefaultMetrics.LastMirroredTrade.Set(float64(copiedAt))
}

// RecordTradeSkipped records a skip decision.
func RecordTradeSkipped(outcome string) {
	DefaultMetrics.TradesSkipped.WithLabelValues(outcome).Inc()
}

// RecordGateRejection records which risk gate refused a trade.
func RecordGateRejection(gate string) {
	DefaultMetrics.GateRejections.WithLabelValues(gate).Inc()
}

// RecordSettlement records one applied market resolution.
func RecordSettlement(trades int) {
	DefaultMetrics.MarketsSettled.Inc()
	DefaultMetrics.TradesSettled.Add(float64(trades))
}
