package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// OrderBookLevel представляет сырой уровень стакана в том виде, в каком его отдает биржа
type OrderBookLevel struct {
	Price  string
	Amount string
}

// DepthSnapshot представляет необработанный снимок стакана
type DepthSnapshot struct {
	Symbol    string
	Timestamp time.Time
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
}

// OrderBookEntry уровень стакана с числовыми значениями
type OrderBookEntry struct {
	Price    float64
	Quantity float64
	Total    float64 // Price * Quantity
}

// OrderBookState снимок стакана: биды по убыванию цены, аски по возрастанию
type OrderBookState struct {
	Symbol     string
	Bids       []OrderBookEntry
	Asks       []OrderBookEntry
	LastUpdate time.Time
}

// Regime режим рынка
type Regime int

const (
	RegimeRangeChop Regime = iota
	RegimeNormalTrend
	RegimeStrongTrend
)

func (r Regime) String() string {
	switch r {
	case RegimeStrongTrend:
		return "STRONG_TREND"
	case RegimeNormalTrend:
		return "NORMAL_TREND"
	default:
		return "RANGE_CHOP"
	}
}

// Trend направление тренда на старшем таймфрейме
type Trend int

const (
	TrendNeutral Trend = iota
	TrendBullish
	TrendBearish
)

func (t Trend) String() string {
	switch t {
	case TrendBullish:
		return "BULLISH"
	case TrendBearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// Direction направление сделки
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Status итоговый статус сигнала
type Status int

const (
	StatusNoTrade Status = iota
	StatusPotential
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusPotential:
		return "POTENTIAL"
	default:
		return "NO_TRADE"
	}
}

// MarketContext вспомогательные показатели, не влияющие на скоринг
type MarketContext struct {
	ATR              float64
	VolumeSupporting bool
	PriceNearEMA     bool
}

// AnalysisResult результат одного прогона анализа
type AnalysisResult struct {
	Symbol    string
	Timestamp time.Time

	// Контекст рынка
	Regime        Regime
	Trend         Trend
	RSI           float64
	EMA9          float64
	EMA21         float64
	OrderBookBias float64

	// Сигнал
	Status          Status
	Direction       Direction
	ConfidenceScore int

	// Параметры сделки
	Price       float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfits [3]float64 // TP1 консервативный, TP2 основной, TP3 расширенный
	RiskReward  float64    // по TP2

	// Обоснование
	Confirmations   []string
	BlockingReasons []string

	Context MarketContext
}

// SpoofAlert предупреждение о снятой крупной заявке
type SpoofAlert struct {
	ID        string
	Symbol    string
	Price     float64
	Duration  time.Duration
	Message   string
	EmittedAt time.Time
	ExpiresAt time.Time
}

// Expired истек ли срок показа предупреждения
func (a SpoofAlert) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
