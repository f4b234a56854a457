package signal

import (
	"fmt"

	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// Inputs данные для скоринга
type Inputs struct {
	Regime        models.Regime
	Trend         models.Trend
	RSI           float64 // RSI входного таймфрейма
	Price         float64
	EMA21         float64 // EMA21 входного таймфрейма
	OrderBookBias float64
}

// Outcome результат скоринга до определения статуса
type Outcome struct {
	Direction models.Direction
	Score     int
	Reasons   *Reasons
}

// Scorer оценивает конфлюенс сигналов для лонга и шорта
type Scorer struct {
	config     config.SignalConfig
	entryLabel string // подпись входного таймфрейма в причинах, например 15m
}

// NewScorer создает скорер
func NewScorer(cfg config.SignalConfig, entryInterval string) *Scorer {
	return &Scorer{
		config:     cfg,
		entryLabel: entryInterval,
	}
}

// Score выбирает ветку и суммирует независимые бонусы.
// Направление выставляется только если ветка не набрала блокирующих причин.
func (s *Scorer) Score(in Inputs) Outcome {
	reasons := NewReasons()
	out := Outcome{Direction: models.DirectionNone, Reasons: reasons}

	switch {
	case in.Trend == models.TrendBullish ||
		(in.Regime == models.RegimeRangeChop && in.OrderBookBias > s.config.RangeEntryBias):
		out.Score = s.scoreLong(in, reasons)
		if !reasons.Blocked() {
			out.Direction = models.DirectionLong
			out.Score += s.config.TrendBasePts
		}

	case in.Trend == models.TrendBearish ||
		(in.Regime == models.RegimeRangeChop && in.OrderBookBias < -s.config.RangeEntryBias):
		out.Score = s.scoreShort(in, reasons)
		if !reasons.Blocked() {
			out.Direction = models.DirectionShort
			out.Score += s.config.TrendBasePts
		}

	default:
		reasons.Block("Market structure undefined / Choppy")
	}

	return out
}

func (s *Scorer) scoreLong(in Inputs, reasons *Reasons) int {
	c := s.config
	score := 0

	// RSI
	switch {
	case in.RSI < c.RSIOversold:
		reasons.Confirm("RSI Oversold")
		score += c.RSIExtremePts
	case in.RSI > c.RSIOverbought:
		reasons.Block("RSI Overbought (Risk of pullback)")
	default:
		reasons.Confirm("RSI in Value Zone")
		score += c.RSIValuePts
	}

	// Структура: между 0.99*EMA21 и EMA21 очков нет
	if in.Price > in.EMA21 {
		reasons.Confirm(fmt.Sprintf("Price above %s EMA21", s.entryLabel))
		score += c.StructurePts
	} else if in.Price < in.EMA21*c.EMALowerBand {
		reasons.Block(fmt.Sprintf("Price lost %s EMA21 structure", s.entryLabel))
	}

	// Стакан
	if in.OrderBookBias > c.BookConfirmBias {
		reasons.Confirm("Order Book Bid Support")
		score += c.BookPts
	} else if in.OrderBookBias < -c.BookBlockBias {
		reasons.Block("Heavy Sell Walls Overhead")
	}

	return score
}

func (s *Scorer) scoreShort(in Inputs, reasons *Reasons) int {
	c := s.config
	score := 0

	switch {
	case in.RSI > c.RSIOverbought:
		reasons.Confirm("RSI Overbought")
		score += c.RSIExtremePts
	case in.RSI < c.RSIOversold:
		reasons.Block("RSI Oversold (Risk of bounce)")
	default:
		reasons.Confirm("RSI in Value Zone")
		score += c.RSIValuePts
	}

	if in.Price < in.EMA21 {
		reasons.Confirm(fmt.Sprintf("Price below %s EMA21", s.entryLabel))
		score += c.StructurePts
	} else if in.Price > in.EMA21*c.EMAUpperBand {
		reasons.Block(fmt.Sprintf("Price broke %s EMA21 structure", s.entryLabel))
	}

	if in.OrderBookBias < -c.BookConfirmBias {
		reasons.Confirm("Order Book Ask Pressure")
		score += c.BookPts
	} else if in.OrderBookBias > c.BookBlockBias {
		reasons.Block("Heavy Buy Walls Below")
	}

	return score
}
