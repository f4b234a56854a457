package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/analysis/indicators"
	"github.com/skalibog/cryptoscalp/internal/analysis/orderbook"
	"github.com/skalibog/cryptoscalp/internal/analysis/regime"
	"github.com/skalibog/cryptoscalp/internal/analysis/risk"
	"github.com/skalibog/cryptoscalp/internal/analysis/signal"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"go.uber.org/zap"
)

// Analyzer объединяет все аналитические компоненты в один прогон
type Analyzer struct {
	config     config.AnalysisConfig
	regime     *regime.Classifier
	scorer     *signal.Scorer
	calculator *risk.Calculator
	now        func() time.Time
}

// NewAnalyzer создает анализатор
func NewAnalyzer(cfg config.AnalysisConfig, entryInterval string) *Analyzer {
	return &Analyzer{
		config:     cfg,
		regime:     regime.NewClassifier(cfg.Regime),
		scorer:     signal.NewScorer(cfg.Signal, entryInterval),
		calculator: risk.NewCalculator(cfg.Risk),
		now:        time.Now,
	}
}

// Analyze строит новый результат по свечам входного и трендового таймфреймов и снимку стакана.
// Стакан может отсутствовать, тогда дисбаланс равен нулю.
func (a *Analyzer) Analyze(entry, trend []*models.Candle, book *models.OrderBookState) (*models.AnalysisResult, error) {
	if len(entry) < a.config.MinCandles || len(trend) < a.config.MinCandles {
		return nil, fmt.Errorf("свечей входа %d, тренда %d, требуется %d: %w",
			len(entry), len(trend), a.config.MinCandles, analysis.ErrInsufficientData)
	}

	ind := a.config.Indicators

	// 1. Индикаторы
	trendFast, err := indicators.EMA(trend, ind.EMAFast)
	if err != nil {
		return nil, err
	}
	trendSlow, err := indicators.EMA(trend, ind.EMASlow)
	if err != nil {
		return nil, err
	}
	entryRSI, err := indicators.RSI(entry, ind.RSIPeriod)
	if err != nil {
		return nil, err
	}
	entrySlow, err := indicators.EMA(entry, ind.EMASlow)
	if err != nil {
		return nil, err
	}

	price := entry[len(entry)-1].Close
	emaFast := indicators.Last(trendFast)
	emaSlow := indicators.Last(trendSlow)
	rsi := indicators.Last(entryRSI)
	entryEMA := indicators.Last(entrySlow)
	bias := orderbook.Bias(book)

	if !finite(price, emaFast, emaSlow, rsi, entryEMA, bias) {
		return nil, fmt.Errorf("нечисловые индикаторы: %w", analysis.ErrArithmeticDegenerate)
	}

	// 2. Режим рынка
	reg, trendDir, err := a.regime.Classify(emaFast, emaSlow)
	if err != nil {
		return nil, err
	}

	// 3. Скоринг
	outcome := a.scorer.Score(signal.Inputs{
		Regime:        reg,
		Trend:         trendDir,
		RSI:           rsi,
		Price:         price,
		EMA21:         entryEMA,
		OrderBookBias: bias,
	})

	result := &models.AnalysisResult{
		Symbol:        entry[len(entry)-1].Symbol,
		Timestamp:     a.now(),
		Regime:        reg,
		Trend:         trendDir,
		RSI:           rsi,
		EMA9:          emaFast,
		EMA21:         emaSlow,
		OrderBookBias: risk.Round2(bias),
		Direction:     outcome.Direction,
		Price:         price,
		EntryPrice:    price,
		Context:       a.marketContext(entry, price, entryEMA),
	}

	// 4. Цели и риск
	if outcome.Direction != models.DirectionNone {
		levels, err := a.calculator.Levels(outcome.Direction, price, entry)
		if err != nil {
			return nil, err
		}
		result.StopLoss = levels.StopLoss
		result.TakeProfits = levels.TakeProfits
		result.RiskReward = levels.RiskReward
	}

	// 5. Итоговый статус
	result.Status = signal.ResolveStatus(outcome.Reasons, outcome.Score, a.config.Status)
	result.ConfidenceScore = signal.ClampScore(outcome.Score)
	result.Confirmations = outcome.Reasons.Confirmations()
	result.BlockingReasons = outcome.Reasons.BlockingReasons()

	logger.Debug("AGGREGATOR: анализ завершен",
		zap.String("symbol", result.Symbol),
		zap.Stringer("regime", result.Regime),
		zap.Stringer("direction", result.Direction),
		zap.Stringer("status", result.Status),
		zap.Int("score", result.ConfidenceScore))

	return result, nil
}

// marketContext вспомогательные показатели; ошибки здесь не мешают основному результату
func (a *Analyzer) marketContext(entry []*models.Candle, price, entryEMA float64) models.MarketContext {
	ind := a.config.Indicators
	mc := models.MarketContext{
		PriceNearEMA: indicators.PriceNearEMA(price, entryEMA, ind.NearEMABand),
	}

	if atr, err := indicators.ATR(entry, ind.ATRPeriod); err == nil && finite(atr) {
		mc.ATR = atr
	} else if err != nil {
		logger.Debug("ATR недоступен", zap.Error(err))
	}

	if ok, err := indicators.VolumeSupporting(entry, ind.VolumePeriod); err == nil {
		mc.VolumeSupporting = ok
	} else {
		logger.Debug("Объемный фильтр недоступен", zap.Error(err))
	}

	return mc
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
