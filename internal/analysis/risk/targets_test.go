package risk

import (
	"math"
	"testing"

	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(lows, highs []float64) []*models.Candle {
	candles := make([]*models.Candle, len(lows))
	for i := range lows {
		candles[i] = &models.Candle{Low: lows[i], High: highs[i], Close: (lows[i] + highs[i]) / 2}
	}
	return candles
}

func flat(n int, low, high float64) []*models.Candle {
	lows := make([]float64, n)
	highs := make([]float64, n)
	for i := range lows {
		lows[i], highs[i] = low, high
	}
	return bars(lows, highs)
}

func newTestCalculator() *Calculator {
	return NewCalculator(config.Default().Analysis.Risk)
}

func TestLongUsesStructureWhenWider(t *testing.T) {
	levels, err := newTestCalculator().Levels(models.DirectionLong, 100, flat(10, 95, 101))
	require.NoError(t, err)

	// structureSL = 95*0.998 = 94.81 < minSL 99.2
	assert.InDelta(t, 94.81, levels.StopLoss, 1e-9)
	risk := 100 - levels.StopLoss
	assert.InDelta(t, 100+risk*1.5, levels.TakeProfits[0], 1e-9)
	assert.InDelta(t, 100+risk*2.5, levels.TakeProfits[1], 1e-9)
	assert.InDelta(t, 100+risk*4.0, levels.TakeProfits[2], 1e-9)
	assert.Equal(t, 2.5, levels.RiskReward)
}

func TestLongFallsBackToMinimumStop(t *testing.T) {
	// Минимум свинга выше цены входа: стоп по минимальному отступу
	levels, err := newTestCalculator().Levels(models.DirectionLong, 100, flat(10, 100.5, 102))
	require.NoError(t, err)
	assert.InDelta(t, 99.2, levels.StopLoss, 1e-9)

	// Свинг слишком близко: берется более дальний минимальный стоп
	levels, err = newTestCalculator().Levels(models.DirectionLong, 100, flat(10, 99.9, 101))
	require.NoError(t, err)
	assert.InDelta(t, 99.2, levels.StopLoss, 1e-9)
}

func TestShortMirror(t *testing.T) {
	levels, err := newTestCalculator().Levels(models.DirectionShort, 100, flat(10, 98, 105))
	require.NoError(t, err)

	// structureSL = 105*1.002 = 105.21 > minSL 100.8
	assert.InDelta(t, 105.21, levels.StopLoss, 1e-9)
	assert.Less(t, levels.TakeProfits[0], 100.0)
	assert.Less(t, levels.TakeProfits[1], levels.TakeProfits[0])
	assert.Less(t, levels.TakeProfits[2], levels.TakeProfits[1])
	assert.Equal(t, 2.5, levels.RiskReward)

	levels, err = newTestCalculator().Levels(models.DirectionShort, 100, flat(10, 97, 99))
	require.NoError(t, err)
	assert.InDelta(t, 100.8, levels.StopLoss, 1e-9)
}

func TestSwingUsesOnlyLookback(t *testing.T) {
	lows := []float64{50, 50, 99, 99, 99, 99, 99, 99, 99, 99, 99, 99}
	highs := []float64{200, 200, 101, 101, 101, 101, 101, 101, 101, 101, 101, 101}

	levels, err := newTestCalculator().Levels(models.DirectionLong, 100, bars(lows, highs))
	require.NoError(t, err)
	// Старые бары с low=50 за пределами окна 10 свечей
	assert.InDelta(t, 99*0.998, levels.StopLoss, 1e-9)
}

func TestTargetsMonotonicAndRiskReward(t *testing.T) {
	calc := newTestCalculator()

	for _, dir := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		for _, entry := range []float64{0.0123, 1.5, 100, 43210.77} {
			levels, err := calc.Levels(dir, entry, flat(12, entry*0.97, entry*1.03))
			require.NoError(t, err)

			prev := 0.0
			for _, tp := range levels.TakeProfits {
				dist := tp - entry
				if dir == models.DirectionShort {
					dist = entry - tp
				}
				assert.Greater(t, dist, prev)
				prev = dist
			}

			want := math.Abs(levels.TakeProfits[1]-entry) / math.Abs(entry-levels.StopLoss)
			assert.InDelta(t, want, levels.RiskReward, 0.005)
		}
	}
}

func TestLevelsErrors(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.Levels(models.DirectionLong, 100, nil)
	assert.ErrorIs(t, err, analysis.ErrInsufficientData)

	_, err = calc.Levels(models.DirectionNone, 100, flat(10, 99, 101))
	assert.Error(t, err)

	_, err = calc.Levels(models.DirectionLong, 0, flat(10, 99, 101))
	assert.ErrorIs(t, err, analysis.ErrArithmeticDegenerate)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.5, Round2(2.4999999))
	assert.Equal(t, 0.12, Round2(0.123))
	assert.Equal(t, -0.25, Round2(-0.254))
}
