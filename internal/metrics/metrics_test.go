package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRecordAnalysis(t *testing.T) {
	result := &models.AnalysisResult{
		Symbol:          "METRICUSDT",
		Status:          models.StatusPotential,
		ConfidenceScore: 65,
		OrderBookBias:   -0.12,
	}

	RecordAnalysis(result, 150*time.Millisecond)
	RecordAnalysis(result, 90*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(analysesTotal.WithLabelValues("METRICUSDT", "POTENTIAL")))
	assert.Equal(t, 65.0, testutil.ToFloat64(confidenceScore.WithLabelValues("METRICUSDT")))
	assert.Equal(t, -0.12, testutil.ToFloat64(orderBookBias.WithLabelValues("METRICUSDT")))
}

func TestCounters(t *testing.T) {
	RecordActiveSignal("METRICUSDT", models.DirectionShort)
	RecordSpoofAlert("METRICUSDT")
	RecordSpoofAlert("METRICUSDT")
	RecordError("metrics_test")

	assert.Equal(t, 1.0, testutil.ToFloat64(activeSignalsTotal.WithLabelValues("METRICUSDT", "SHORT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(spoofAlertsTotal.WithLabelValues("METRICUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(errorsTotal.WithLabelValues("metrics_test")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordSpoofAlert("HANDLERUSDT")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `cryptoscalp_spoof_alerts_total{symbol="HANDLERUSDT"} 1`)
}
