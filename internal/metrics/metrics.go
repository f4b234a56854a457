// Package metrics экспортирует показатели движка в Prometheus
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoscalp_analyses_total",
			Help: "Total number of completed analysis runs",
		},
		[]string{"symbol", "status"},
	)

	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoscalp_analysis_duration_seconds",
			Help:    "Duration of an analysis cycle including market data fetch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	confidenceScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cryptoscalp_confidence_score",
			Help: "Latest confidence score per symbol",
		},
		[]string{"symbol"},
	)

	orderBookBias = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cryptoscalp_orderbook_bias",
			Help: "Latest order book liquidity imbalance",
		},
		[]string{"symbol"},
	)

	activeSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoscalp_active_signals_total",
			Help: "Transitions into ACTIVE status",
		},
		[]string{"symbol", "direction"},
	)

	spoofAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoscalp_spoof_alerts_total",
			Help: "Total number of spoof alerts",
		},
		[]string{"symbol"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoscalp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(analysesTotal)
	prometheus.MustRegister(analysisDuration)
	prometheus.MustRegister(confidenceScore)
	prometheus.MustRegister(orderBookBias)
	prometheus.MustRegister(activeSignalsTotal)
	prometheus.MustRegister(spoofAlertsTotal)
	prometheus.MustRegister(errorsTotal)
}

// Handler отдает /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis учитывает завершенный прогон анализа
func RecordAnalysis(result *models.AnalysisResult, took time.Duration) {
	analysesTotal.WithLabelValues(result.Symbol, result.Status.String()).Inc()
	analysisDuration.WithLabelValues(result.Symbol).Observe(took.Seconds())
	confidenceScore.WithLabelValues(result.Symbol).Set(float64(result.ConfidenceScore))
	orderBookBias.WithLabelValues(result.Symbol).Set(result.OrderBookBias)
}

// RecordActiveSignal учитывает переход инструмента в ACTIVE
func RecordActiveSignal(symbol string, direction models.Direction) {
	activeSignalsTotal.WithLabelValues(symbol, direction.String()).Inc()
}

// RecordSpoofAlert учитывает предупреждение о спуфинге
func RecordSpoofAlert(symbol string) {
	spoofAlertsTotal.WithLabelValues(symbol).Inc()
}

// RecordError учитывает ошибку по типу: klines, depth, analysis, storage
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
