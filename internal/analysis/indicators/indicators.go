// Package indicators реализует технические индикаторы над свечами
package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// EMA рассчитывает экспоненциальную скользящую среднюю.
// Первое значение равно первому закрытию, прогрева нет: используется только последнее значение длинного ряда.
func EMA(candles []*models.Candle, period int) ([]float64, error) {
	if len(candles) == 0 || period < 1 {
		return nil, fmt.Errorf("EMA(%d) по %d свечам: %w", period, len(candles), analysis.ErrInsufficientData)
	}

	k := 2 / (float64(period) + 1)
	result := make([]float64, len(candles))

	ema := candles[0].Close
	result[0] = ema
	for i := 1; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*k + ema
		result[i] = ema
	}

	return result, nil
}

// RSI рассчитывает индекс относительной силы со сглаживанием Уайлдера.
// Длина результата len(candles)-period. При нулевом среднем убытке RSI равен 100.
func RSI(candles []*models.Candle, period int) ([]float64, error) {
	if period < 1 || len(candles) <= period {
		return nil, fmt.Errorf("RSI(%d) по %d свечам: %w", period, len(candles), analysis.ErrInsufficientData)
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	p := float64(period)
	avgGain := gains / p
	avgLoss := losses / p

	result := make([]float64, 0, len(candles)-period)
	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain := math.Max(change, 0)
		loss := math.Max(-change, 0)

		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	// Насыщение: без убытков RSI = 100 (в том числе на плоском участке)
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// Last возвращает последнее значение ряда
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// ATR рассчитывает средний истинный диапазон и возвращает последнее значение
func ATR(candles []*models.Candle, period int) (float64, error) {
	if period < 1 || len(candles) <= period {
		return 0, fmt.Errorf("ATR(%d) по %d свечам: %w", period, len(candles), analysis.ErrInsufficientData)
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr := talib.Atr(highs, lows, closes, period)
	return atr[len(atr)-1], nil
}

// VolumeSupporting проверяет, что объем последней свечи выше среднего объема предыдущих period свечей
func VolumeSupporting(candles []*models.Candle, period int) (bool, error) {
	if period < 1 || len(candles) <= period {
		return false, fmt.Errorf("объем(%d) по %d свечам: %w", period, len(candles), analysis.ErrInsufficientData)
	}

	// Последняя свеча в среднее не входит
	volumes := make([]float64, len(candles)-1)
	for i, c := range candles[:len(candles)-1] {
		volumes[i] = c.Volume
	}

	sma := talib.Sma(volumes, period)
	return candles[len(candles)-1].Volume > sma[len(sma)-1], nil
}

// PriceNearEMA проверяет, что цена отклоняется от EMA не более чем на band (доля цены)
func PriceNearEMA(price, ema, band float64) bool {
	if price == 0 {
		return false
	}
	return math.Abs((price-ema)/price) < band
}
