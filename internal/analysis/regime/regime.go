// Package regime классифицирует режим рынка по EMA старшего таймфрейма
package regime

import (
	"fmt"
	"math"

	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// Classifier классификатор режима
type Classifier struct {
	config config.RegimeConfig
}

// NewClassifier создает классификатор режима
func NewClassifier(cfg config.RegimeConfig) *Classifier {
	return &Classifier{
		config: cfg,
	}
}

// Classify определяет режим и направление по последним EMA9 и EMA21 трендового таймфрейма
func (c *Classifier) Classify(emaFast, emaSlow float64) (models.Regime, models.Trend, error) {
	if emaSlow <= 0 || math.IsNaN(emaSlow) || math.IsNaN(emaFast) || math.IsInf(emaFast, 0) || math.IsInf(emaSlow, 0) {
		return models.RegimeRangeChop, models.TrendNeutral,
			fmt.Errorf("EMA fast=%v slow=%v: %w", emaFast, emaSlow, analysis.ErrArithmeticDegenerate)
	}

	regime, trend := c.ClassifyDiff((emaFast - emaSlow) / emaSlow)
	return regime, trend, nil
}

// ClassifyDiff классифицирует относительную разницу EMA, первое совпадение выигрывает
func (c *Classifier) ClassifyDiff(emaDiff float64) (models.Regime, models.Trend) {
	absDiff := math.Abs(emaDiff)

	switch {
	case absDiff > c.config.StrongTrend:
		return models.RegimeStrongTrend, sign(emaDiff)
	case absDiff > c.config.NormalTrend:
		return models.RegimeNormalTrend, sign(emaDiff)
	default:
		// Во флэте направление нейтрально только при точном равенстве EMA
		return models.RegimeRangeChop, sign(emaDiff)
	}
}

func sign(diff float64) models.Trend {
	switch {
	case diff > 0:
		return models.TrendBullish
	case diff < 0:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}
