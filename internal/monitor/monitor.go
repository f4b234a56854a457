// Package monitor опрашивает биржу по таймерам и прогоняет анализ по каждому инструменту
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skalibog/cryptoscalp/internal/analysis"
	"github.com/skalibog/cryptoscalp/internal/analysis/aggregator"
	"github.com/skalibog/cryptoscalp/internal/analysis/orderbook"
	"github.com/skalibog/cryptoscalp/internal/analysis/spoof"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/internal/metrics"
	"github.com/skalibog/cryptoscalp/internal/storage"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Одновременных запросов к бирже в одном цикле
const maxParallelSymbols = 4

// MarketSource источник рыночных данных
type MarketSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*models.DepthSnapshot, error)
}

// Listener получает обновления монитора. Методы вызываются из горутин монитора.
type Listener interface {
	OnResult(result *models.AnalysisResult)
	OnOrderBook(book *models.OrderBookState)
	OnSpoofAlert(alert models.SpoofAlert)
}

// Monitor владеет состоянием инструментов: последним результатом, стаканом и трекером статуса
type Monitor struct {
	source   MarketSource
	store    storage.Storage
	analyzer *aggregator.Analyzer
	spoof    *spoof.Registry
	trading  config.TradingConfig
	config   config.AnalysisConfig

	flight singleflight.Group

	mu        sync.RWMutex
	results   map[string]*models.AnalysisResult
	books     map[string]*models.OrderBookState
	trackers  map[string]*StatusTracker
	listeners []Listener

	now func() time.Time
}

// New создает монитор
func New(cfg *config.Config, source MarketSource, store storage.Storage) *Monitor {
	if store == nil {
		store = storage.NopStorage{}
	}

	trackers := make(map[string]*StatusTracker, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		trackers[symbol] = &StatusTracker{}
	}

	return &Monitor{
		source:   source,
		store:    store,
		analyzer: aggregator.NewAnalyzer(cfg.Analysis, cfg.Trading.EntryInterval),
		spoof:    spoof.NewRegistry(cfg.Analysis.Spoof),
		trading:  cfg.Trading,
		config:   cfg.Analysis,
		results:  make(map[string]*models.AnalysisResult),
		books:    make(map[string]*models.OrderBookState),
		trackers: trackers,
		now:      time.Now,
	}
}

// AddListener подписывает получателя обновлений
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Run запускает цикл анализа и цикл стакана до отмены контекста
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.loop(ctx, time.Duration(m.config.IntervalSeconds)*time.Second, m.AnalyzeAll)
		return nil
	})
	g.Go(func() error {
		m.loop(ctx, time.Duration(m.config.OrderBook.IntervalSeconds)*time.Second, m.PollOrderBooks)
		return nil
	})

	logger.Info("Монитор запущен",
		zap.Strings("symbols", m.trading.Symbols),
		zap.Int("analysis_interval_s", m.config.IntervalSeconds),
		zap.Int("orderbook_interval_s", m.config.OrderBook.IntervalSeconds))

	err := g.Wait()
	logger.Info("Монитор остановлен")
	return err
}

func (m *Monitor) loop(ctx context.Context, every time.Duration, tick func(context.Context)) {
	tick(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// AnalyzeAll выполняет один цикл анализа по всем инструментам
func (m *Monitor) AnalyzeAll(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(maxParallelSymbols)

	for _, symbol := range m.trading.Symbols {
		g.Go(func() error {
			// Ошибка одного инструмента не прерывает остальные
			_, _ = m.AnalyzeSymbol(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()
}

// AnalyzeSymbol анализирует один инструмент. При ошибке возвращается предыдущий результат
// вместе с ошибкой. Пересекающиеся вызовы для одного инструмента объединяются.
func (m *Monitor) AnalyzeSymbol(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	v, err, _ := m.flight.Do("analysis:"+symbol, func() (interface{}, error) {
		return m.analyze(ctx, symbol)
	})
	if err != nil {
		logger.Warn("Анализ не выполнен, остается предыдущий результат",
			zap.String("symbol", symbol), zap.Error(err))
		return m.Result(symbol), err
	}
	return v.(*models.AnalysisResult), nil
}

func (m *Monitor) analyze(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	start := time.Now()

	var entry, trend []*models.Candle
	var book *models.OrderBookState

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		candles, err := m.source.GetKlines(gctx, symbol, m.trading.EntryInterval, m.trading.CandleLimit)
		if err != nil {
			metrics.RecordError("klines")
			return fmt.Errorf("свечи %s %s: %w", symbol, m.trading.EntryInterval, err)
		}
		entry = candles
		return nil
	})
	g.Go(func() error {
		candles, err := m.source.GetKlines(gctx, symbol, m.trading.TrendInterval, m.trading.CandleLimit)
		if err != nil {
			metrics.RecordError("klines")
			return fmt.Errorf("свечи %s %s: %w", symbol, m.trading.TrendInterval, err)
		}
		trend = candles
		return nil
	})
	g.Go(func() error {
		// Без стакана анализ продолжается с нулевым дисбалансом
		book = m.fetchBook(gctx, symbol)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := m.analyzer.Analyze(entry, trend, book)
	if err != nil {
		metrics.RecordError(errorType(err))
		return nil, fmt.Errorf("анализ %s: %w", symbol, err)
	}
	// Символ берется из запроса, свечи могут прийти без него
	result.Symbol = symbol

	m.mu.Lock()
	m.results[symbol] = result
	if book != nil {
		m.books[symbol] = book
	}
	tracker, ok := m.trackers[symbol]
	if !ok {
		tracker = &StatusTracker{}
		m.trackers[symbol] = tracker
	}
	entered := tracker.Observe(result.Status)
	listeners := m.listeners
	m.mu.Unlock()

	metrics.RecordAnalysis(result, time.Since(start))

	if entered {
		logger.Info("Новый активный сигнал",
			zap.String("symbol", symbol),
			zap.Stringer("direction", result.Direction),
			zap.Int("score", result.ConfidenceScore),
			zap.Float64("entry", result.EntryPrice),
			zap.Float64("stop_loss", result.StopLoss))
		metrics.RecordActiveSignal(symbol, result.Direction)
	}

	if err := m.store.SaveAnalysis(ctx, result); err != nil {
		metrics.RecordError("storage")
		logger.Warn("Ошибка сохранения анализа", zap.String("symbol", symbol), zap.Error(err))
	}

	for _, l := range listeners {
		l.OnResult(result)
		if book != nil {
			l.OnOrderBook(book)
		}
	}

	return result, nil
}

// PollOrderBooks обновляет стаканы всех инструментов и прогоняет детектор спуфинга
func (m *Monitor) PollOrderBooks(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(maxParallelSymbols)

	for _, symbol := range m.trading.Symbols {
		g.Go(func() error {
			_, _, _ = m.flight.Do("orderbook:"+symbol, func() (interface{}, error) {
				m.pollOrderBook(ctx, symbol)
				return nil, nil
			})
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Monitor) pollOrderBook(ctx context.Context, symbol string) {
	book := m.fetchBook(ctx, symbol)
	if book == nil {
		return
	}

	alerts := m.spoof.Detector(symbol).Observe(book, m.now())

	m.mu.Lock()
	m.books[symbol] = book
	listeners := m.listeners
	m.mu.Unlock()

	for _, alert := range alerts {
		logger.Warn(alert.Message,
			zap.String("symbol", symbol),
			zap.Float64("price", alert.Price),
			zap.Duration("lifetime", alert.Duration))
		metrics.RecordSpoofAlert(symbol)

		if err := m.store.SaveSpoofAlert(ctx, alert); err != nil {
			metrics.RecordError("storage")
			logger.Warn("Ошибка сохранения предупреждения", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	for _, l := range listeners {
		l.OnOrderBook(book)
		for _, alert := range alerts {
			l.OnSpoofAlert(alert)
		}
	}
}

// fetchBook получает и разбирает стакан; при любой ошибке возвращает nil
func (m *Monitor) fetchBook(ctx context.Context, symbol string) *models.OrderBookState {
	snapshot, err := m.source.GetOrderBook(ctx, symbol, m.config.OrderBook.Depth)
	if err != nil {
		metrics.RecordError("depth")
		logger.Warn("Стакан недоступен", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}

	book, err := orderbook.Parse(snapshot)
	if err != nil {
		metrics.RecordError("malformed_snapshot")
		logger.Warn("Некорректный снимок стакана", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	if book.Symbol == "" {
		book.Symbol = symbol
	}
	return book
}

// Result последний успешный результат по инструменту
func (m *Monitor) Result(symbol string) *models.AnalysisResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results[symbol]
}

// Results копия последних результатов по всем инструментам
func (m *Monitor) Results() map[string]*models.AnalysisResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*models.AnalysisResult, len(m.results))
	for symbol, r := range m.results {
		results[symbol] = r
	}
	return results
}

// Book последний стакан инструмента
func (m *Monitor) Book(symbol string) *models.OrderBookState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[symbol]
}

// ActiveAlert действующее предупреждение о спуфинге по инструменту
func (m *Monitor) ActiveAlert(symbol string) (models.SpoofAlert, bool) {
	return m.spoof.Detector(symbol).Active(m.now())
}

func errorType(err error) string {
	switch {
	case errors.Is(err, analysis.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, analysis.ErrArithmeticDegenerate):
		return "degenerate"
	default:
		return "analysis"
	}
}
