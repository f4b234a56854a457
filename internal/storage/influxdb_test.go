package storage

import (
	"context"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func sampleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Symbol:          "ETHUSDT",
		Timestamp:       ts,
		Regime:          models.RegimeStrongTrend,
		Trend:           models.TrendBullish,
		RSI:             58.2,
		EMA9:            2510,
		EMA21:           2480,
		OrderBookBias:   0.12,
		Status:          models.StatusActive,
		Direction:       models.DirectionLong,
		ConfidenceScore: 80,
		Price:           2500,
		EntryPrice:      2500,
		StopLoss:        2480,
		TakeProfits:     [3]float64{2530, 2550, 2580},
		RiskReward:      2.5,
		Confirmations:   []string{"RSI in Value Zone", "Price above 15m EMA21", "Order Book Bid Support"},
	}
}

func pointMaps(p *write.Point) (map[string]string, map[string]interface{}) {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	fields := make(map[string]interface{})
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	return tags, fields
}

func TestAnalysisPoint(t *testing.T) {
	p := analysisPoint(sampleResult())
	tags, fields := pointMaps(p)

	assert.Equal(t, measurementAnalysis, p.Name())
	assert.Equal(t, ts, p.Time())
	assert.Equal(t, map[string]string{"symbol": "ETHUSDT", "status": "ACTIVE", "direction": "LONG"}, tags)
	assert.Equal(t, "STRONG_TREND", fields["regime"])
	assert.Equal(t, int64(80), fields["score"])
	assert.Equal(t, 2550.0, fields["tp2"])
	assert.Equal(t, "RSI in Value Zone | Price above 15m EMA21 | Order Book Bid Support", fields["confirmations"])
	assert.Equal(t, "", fields["blocking"])
}

func TestSpoofPoint(t *testing.T) {
	p := spoofPoint(models.SpoofAlert{
		ID:        "a1",
		Symbol:    "BTCUSDT",
		Price:     100,
		Duration:  10 * time.Second,
		Message:   "Spoof Alert: wall at 100.00 pulled in 10.0s",
		EmittedAt: ts,
	})
	tags, fields := pointMaps(p)

	assert.Equal(t, measurementSpoof, p.Name())
	assert.Equal(t, "BTCUSDT", tags["symbol"])
	assert.Equal(t, int64(10000), fields["duration_ms"])
	assert.Equal(t, 100.0, fields["price"])
}

func TestRecordToResultRoundTrip(t *testing.T) {
	want := sampleResult()
	_, fields := pointMaps(analysisPoint(want))
	fields["status"] = "ACTIVE"
	fields["direction"] = "LONG"

	got := recordToResult("ETHUSDT", ts, fields)

	assert.Equal(t, want.Regime, got.Regime)
	assert.Equal(t, want.Trend, got.Trend)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Direction, got.Direction)
	assert.Equal(t, want.ConfidenceScore, got.ConfidenceScore)
	assert.Equal(t, want.TakeProfits, got.TakeProfits)
	assert.Equal(t, want.Confirmations, got.Confirmations)
	assert.Nil(t, got.BlockingReasons)
}

func TestParseEnumsFallback(t *testing.T) {
	assert.Equal(t, models.StatusNoTrade, parseStatus("???"))
	assert.Equal(t, models.DirectionShort, parseDirection("SHORT"))
	assert.Equal(t, models.TrendBearish, parseTrend("BEARISH"))
	assert.Equal(t, models.RegimeRangeChop, parseRegime(""))
}

func TestHistoryQuery(t *testing.T) {
	q := historyQuery("signals", "SOLUSDT", 25)
	assert.Contains(t, q, `from(bucket: "signals")`)
	assert.Contains(t, q, `r.symbol == "SOLUSDT"`)
	assert.Contains(t, q, `limit(n: 25)`)
}

func TestHistoryQueryEscapesSymbol(t *testing.T) {
	q := historyQuery("signals", `BTC") |> drop(columns: ["x"]) //`, 5)
	assert.Contains(t, q, `r.symbol == "BTC\") |> drop(columns: [\"x\"]) //")`)
	assert.NotContains(t, q, `r.symbol == "BTC")`)
}

func TestNewStorage(t *testing.T) {
	s, err := New(config.StorageConfig{Type: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopStorage{}, s)

	assert.NoError(t, s.SaveAnalysis(context.Background(), sampleResult()))
	history, err := s.GetAnalysisHistory(context.Background(), "BTCUSDT", 10)
	assert.NoError(t, err)
	assert.Empty(t, history)

	_, err = New(config.StorageConfig{Type: "redis"})
	assert.Error(t, err)
}

func TestNewInfluxDBFailureReturnsNilInterface(t *testing.T) {
	// Порт 1 закрыт: проверка здоровья падает сразу
	s, err := New(config.StorageConfig{Type: "influxdb", URL: "http://127.0.0.1:1", Bucket: "signals"})
	require.Error(t, err)
	assert.True(t, s == nil, "ожидался nil интерфейс, получено %#v", s)
}
