// Package risk рассчитывает стоп-лосс, тейк-профиты и соотношение риск/прибыль
package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// Levels уровни сделки
type Levels struct {
	StopLoss    float64
	TakeProfits [3]float64
	RiskReward  float64
}

// Calculator рассчитывает уровни по структуре последних свечей
type Calculator struct {
	config config.RiskConfig
}

// NewCalculator создает калькулятор уровней
func NewCalculator(cfg config.RiskConfig) *Calculator {
	return &Calculator{
		config: cfg,
	}
}

// Levels рассчитывает уровни для выбранного направления по свечам входного таймфрейма
func (c *Calculator) Levels(direction models.Direction, entry float64, candles []*models.Candle) (Levels, error) {
	if len(candles) == 0 {
		return Levels{}, fmt.Errorf("уровни без свечей: %w", analysis.ErrInsufficientData)
	}
	if entry <= 0 {
		return Levels{}, fmt.Errorf("цена входа %v: %w", entry, analysis.ErrArithmeticDegenerate)
	}

	swingLow, swingHigh := c.swing(candles)

	var levels Levels
	var risk float64

	switch direction {
	case models.DirectionLong:
		// Стоп под минимумом свинга, но не ближе минимального отступа
		structureSL := swingLow * c.config.LongStructureBuf
		minSL := entry * c.config.LongMinStop
		if structureSL < entry {
			levels.StopLoss = math.Min(structureSL, minSL)
		} else {
			levels.StopLoss = minSL
		}
		risk = entry - levels.StopLoss
		for i, m := range c.config.TargetMultiples[:3] {
			levels.TakeProfits[i] = entry + risk*m
		}

	case models.DirectionShort:
		structureSL := swingHigh * c.config.ShortStructure
		minSL := entry * c.config.ShortMinStop
		if structureSL > entry {
			levels.StopLoss = math.Max(structureSL, minSL)
		} else {
			levels.StopLoss = minSL
		}
		risk = levels.StopLoss - entry
		for i, m := range c.config.TargetMultiples[:3] {
			levels.TakeProfits[i] = entry - risk*m
		}

	default:
		return Levels{}, fmt.Errorf("уровни для направления %s не рассчитываются", direction)
	}

	if risk <= 0 {
		return Levels{}, fmt.Errorf("нулевой риск: %w", analysis.ErrArithmeticDegenerate)
	}

	// R:R всегда по второй (основной) цели
	levels.RiskReward = Round2(math.Abs(levels.TakeProfits[1]-entry) / math.Abs(entry-levels.StopLoss))
	return levels, nil
}

// swing находит минимум и максимум последних SwingLookback свечей
func (c *Calculator) swing(candles []*models.Candle) (float64, float64) {
	start := len(candles) - c.config.SwingLookback
	if start < 0 {
		start = 0
	}

	low, high := math.Inf(1), math.Inf(-1)
	for _, candle := range candles[start:] {
		low = math.Min(low, candle.Low)
		high = math.Max(high, candle.High)
	}
	return low, high
}

// Round2 округляет до двух знаков
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
