package orderbook

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// WallClass класс уровня стакана по номиналу
type WallClass int

const (
	WallNone WallClass = iota
	WallWhale
	WallMega
)

// Analyzer реализует разбор и анализ стакана заявок
type Analyzer struct {
	config config.OrderBookConfig
}

// NewAnalyzer создает новый анализатор стакана заявок
func NewAnalyzer(cfg config.OrderBookConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Parse конвертирует строковые цены и объемы в числа и сортирует уровни.
// Снимок без цены или объема на любом уровне считается некорректным целиком.
func Parse(snapshot *models.DepthSnapshot) (*models.OrderBookState, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("пустой снимок: %w", analysis.ErrMalformedSnapshot)
	}

	bids, err := convertLevels(snapshot.Bids, "бида")
	if err != nil {
		return nil, err
	}
	asks, err := convertLevels(snapshot.Asks, "аска")
	if err != nil {
		return nil, err
	}

	// Сортируем биды по убыванию цены
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Price > bids[j].Price
	})

	// Сортируем аски по возрастанию цены
	sort.SliceStable(asks, func(i, j int) bool {
		return asks[i].Price < asks[j].Price
	})

	lastUpdate := snapshot.Timestamp
	if lastUpdate.IsZero() {
		lastUpdate = time.Now()
	}

	return &models.OrderBookState{
		Symbol:     snapshot.Symbol,
		Bids:       bids,
		Asks:       asks,
		LastUpdate: lastUpdate,
	}, nil
}

func convertLevels(levels []models.OrderBookLevel, side string) ([]models.OrderBookEntry, error) {
	entries := make([]models.OrderBookEntry, len(levels))

	for i, level := range levels {
		if level.Price == "" || level.Amount == "" {
			return nil, fmt.Errorf("уровень %s %d без цены или объема: %w", side, i, analysis.ErrMalformedSnapshot)
		}

		price, err := strconv.ParseFloat(level.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга цены %s %q: %w", side, level.Price, analysis.ErrMalformedSnapshot)
		}

		quantity, err := strconv.ParseFloat(level.Amount, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга объема %s %q: %w", side, level.Amount, analysis.ErrMalformedSnapshot)
		}

		// ParseFloat принимает NaN и Inf
		total := price * quantity
		if !isFinite(price) || !isFinite(quantity) || !isFinite(total) {
			return nil, fmt.Errorf("нечисловые значения %s %q x %q: %w", side, level.Price, level.Amount, analysis.ErrMalformedSnapshot)
		}
		if price <= 0 || quantity < 0 {
			return nil, fmt.Errorf("отрицательные значения %s: %w", side, analysis.ErrMalformedSnapshot)
		}

		entries[i] = models.OrderBookEntry{
			Price:    price,
			Quantity: quantity,
			Total:    total,
		}
	}

	return entries, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Bias рассчитывает дисбаланс ликвидности в диапазоне (-1, 1).
// Положительное значение означает преобладание покупателей; без стакана или объема возвращает 0.
func Bias(book *models.OrderBookState) float64 {
	if book == nil {
		return 0
	}

	var bidVolume, askVolume float64
	for _, bid := range book.Bids {
		bidVolume += bid.Total
	}
	for _, ask := range book.Asks {
		askVolume += ask.Total
	}

	totalVolume := bidVolume + askVolume
	if totalVolume == 0 {
		return 0
	}

	return (bidVolume - askVolume) / totalVolume
}

// ClassifyWall относит уровень к китовым заявкам или «великой стене»
func (a *Analyzer) ClassifyWall(entry models.OrderBookEntry) WallClass {
	switch {
	case a.config.MegaWallTotal > 0 && entry.Total > a.config.MegaWallTotal:
		return WallMega
	case a.config.WhaleTotal > 0 && entry.Total > a.config.WhaleTotal:
		return WallWhale
	default:
		return WallNone
	}
}

// MaxTotal возвращает наибольший номинал уровня в стакане, нужен для шкалы отображения
func MaxTotal(book *models.OrderBookState) float64 {
	if book == nil {
		return 0
	}

	var max float64
	for _, side := range [][]models.OrderBookEntry{book.Bids, book.Asks} {
		for _, e := range side {
			if e.Total > max {
				max = e.Total
			}
		}
	}
	return max
}
