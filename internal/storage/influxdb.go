// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

const (
	measurementAnalysis = "analysis"
	measurementSpoof    = "spoof_alerts"

	// Разделитель причин в строковом поле
	reasonSeparator = " | "
)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveAnalysis сохраняет результат анализа
func (s *InfluxDBStorage) SaveAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	if err := s.writeAPI.WritePoint(ctx, analysisPoint(result)); err != nil {
		return fmt.Errorf("ошибка записи анализа %s: %w", result.Symbol, err)
	}
	return nil
}

// SaveSpoofAlert сохраняет предупреждение о спуфинге
func (s *InfluxDBStorage) SaveSpoofAlert(ctx context.Context, alert models.SpoofAlert) error {
	if err := s.writeAPI.WritePoint(ctx, spoofPoint(alert)); err != nil {
		return fmt.Errorf("ошибка записи предупреждения %s: %w", alert.Symbol, err)
	}
	return nil
}

// GetAnalysisHistory получает историю результатов анализа, новые первыми
func (s *InfluxDBStorage) GetAnalysisHistory(ctx context.Context, symbol string, limit int) ([]*models.AnalysisResult, error) {
	query := historyQuery(s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории анализа: %w", err)
	}
	defer result.Close()

	var history []*models.AnalysisResult
	for result.Next() {
		history = append(history, recordToResult(symbol, result.Record().Time(), result.Record().Values()))
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return history, nil
}

func analysisPoint(r *models.AnalysisResult) *write.Point {
	return influxdb2.NewPoint(
		measurementAnalysis,
		map[string]string{
			"symbol":    r.Symbol,
			"status":    r.Status.String(),
			"direction": r.Direction.String(),
		},
		map[string]interface{}{
			"regime":        r.Regime.String(),
			"trend":         r.Trend.String(),
			"score":         r.ConfidenceScore,
			"rsi":           r.RSI,
			"ema9":          r.EMA9,
			"ema21":         r.EMA21,
			"bias":          r.OrderBookBias,
			"price":         r.Price,
			"stop_loss":     r.StopLoss,
			"tp1":           r.TakeProfits[0],
			"tp2":           r.TakeProfits[1],
			"tp3":           r.TakeProfits[2],
			"risk_reward":   r.RiskReward,
			"confirmations": strings.Join(r.Confirmations, reasonSeparator),
			"blocking":      strings.Join(r.BlockingReasons, reasonSeparator),
		},
		r.Timestamp,
	)
}

func spoofPoint(a models.SpoofAlert) *write.Point {
	return influxdb2.NewPoint(
		measurementSpoof,
		map[string]string{
			"symbol": a.Symbol,
		},
		map[string]interface{}{
			"id":          a.ID,
			"price":       a.Price,
			"duration_ms": a.Duration.Milliseconds(),
			"message":     a.Message,
		},
		a.EmittedAt,
	)
}

func historyQuery(bucket, symbol string, limit int) string {
	return fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: -7d)
			|> filter(fn: (r) => r._measurement == %q)
			|> filter(fn: (r) => r.symbol == %q)
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> group()
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, bucket, measurementAnalysis, symbol, limit)
}

// recordToResult собирает результат из строки после pivot
func recordToResult(symbol string, ts time.Time, values map[string]interface{}) *models.AnalysisResult {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}
	num := func(key string) float64 {
		v, _ := values[key].(float64)
		return v
	}

	score, _ := values["score"].(int64)
	price := num("price")

	return &models.AnalysisResult{
		Symbol:          symbol,
		Timestamp:       ts,
		Regime:          parseRegime(str("regime")),
		Trend:           parseTrend(str("trend")),
		RSI:             num("rsi"),
		EMA9:            num("ema9"),
		EMA21:           num("ema21"),
		OrderBookBias:   num("bias"),
		Status:          parseStatus(str("status")),
		Direction:       parseDirection(str("direction")),
		ConfidenceScore: int(score),
		Price:           price,
		EntryPrice:      price,
		StopLoss:        num("stop_loss"),
		TakeProfits:     [3]float64{num("tp1"), num("tp2"), num("tp3")},
		RiskReward:      num("risk_reward"),
		Confirmations:   splitReasons(str("confirmations")),
		BlockingReasons: splitReasons(str("blocking")),
	}
}

func splitReasons(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, reasonSeparator)
}

func parseRegime(s string) models.Regime {
	for _, r := range []models.Regime{models.RegimeNormalTrend, models.RegimeStrongTrend} {
		if r.String() == s {
			return r
		}
	}
	return models.RegimeRangeChop
}

func parseTrend(s string) models.Trend {
	for _, t := range []models.Trend{models.TrendBullish, models.TrendBearish} {
		if t.String() == s {
			return t
		}
	}
	return models.TrendNeutral
}

func parseDirection(s string) models.Direction {
	for _, d := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		if d.String() == s {
			return d
		}
	}
	return models.DirectionNone
}

func parseStatus(s string) models.Status {
	for _, st := range []models.Status{models.StatusPotential, models.StatusActive} {
		if st.String() == s {
			return st
		}
	}
	return models.StatusNoTrade
}
