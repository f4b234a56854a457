package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeSource отдает заранее заданные свечи и очередь снимков стакана
type fakeSource struct {
	mu        sync.Mutex
	klines    map[string][]*models.Candle // ключ - интервал
	klinesErr error
	depth     []*models.DepthSnapshot
	depthErr  error
	calls     int
}

func (f *fakeSource) GetKlines(_ context.Context, _, interval string, _ int) ([]*models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.klinesErr != nil {
		return nil, f.klinesErr
	}
	return f.klines[interval], nil
}

func (f *fakeSource) GetOrderBook(_ context.Context, symbol string, _ int) (*models.DepthSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depthErr != nil {
		return nil, f.depthErr
	}
	if len(f.depth) == 0 {
		return nil, errors.New("нет снимков")
	}
	snapshot := f.depth[0]
	if len(f.depth) > 1 {
		f.depth = f.depth[1:]
	}
	return snapshot, nil
}

type fakeStore struct {
	mu       sync.Mutex
	analyses []*models.AnalysisResult
	alerts   []models.SpoofAlert
	err      error
}

func (s *fakeStore) SaveAnalysis(_ context.Context, r *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, r)
	return s.err
}

func (s *fakeStore) SaveSpoofAlert(_ context.Context, a models.SpoofAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return s.err
}

func (s *fakeStore) GetAnalysisHistory(context.Context, string, int) ([]*models.AnalysisResult, error) {
	return nil, nil
}

func (s *fakeStore) Close() {}

type fakeListener struct {
	mu      sync.Mutex
	results []*models.AnalysisResult
	books   int
	alerts  []models.SpoofAlert
}

func (l *fakeListener) OnResult(r *models.AnalysisResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *fakeListener) OnOrderBook(*models.OrderBookState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books++
}

func (l *fakeListener) OnSpoofAlert(a models.SpoofAlert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, a)
}

func zigzagUp(n int) []*models.Candle {
	candles := make([]*models.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%2 == 1 {
				price += 0.6
			} else {
				price -= 0.4
			}
		}
		candles[i] = &models.Candle{Open: price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 10}
	}
	return candles
}

func steepUp(n int) []*models.Candle {
	candles := make([]*models.Candle, n)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		candles[i] = &models.Candle{Open: price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 10}
	}
	return candles
}

// depth снимок с дисбалансом 0.1 в пользу покупателей
func supportiveDepth() *models.DepthSnapshot {
	return &models.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []models.OrderBookLevel{{Price: "100", Amount: "5.5"}},
		Asks:   []models.OrderBookLevel{{Price: "100", Amount: "4.5"}},
	}
}

func wallDepth() *models.DepthSnapshot {
	return &models.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []models.OrderBookLevel{{Price: "100", Amount: "20000"}},
		Asks:   []models.OrderBookLevel{{Price: "101", Amount: "1"}},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Trading.Symbols = []string{"BTCUSDT"}
	return cfg
}

func newTestMonitor(source *fakeSource, store *fakeStore) *Monitor {
	m := New(testConfig(), source, store)
	m.now = func() time.Time { return testTime }
	return m
}

func healthySource() *fakeSource {
	return &fakeSource{
		klines: map[string][]*models.Candle{
			"15m": zigzagUp(60),
			"1h":  steepUp(60),
		},
		depth: []*models.DepthSnapshot{supportiveDepth()},
	}
}

func TestAnalyzeSymbolActive(t *testing.T) {
	store := &fakeStore{}
	listener := &fakeListener{}
	m := newTestMonitor(healthySource(), store)
	m.AddListener(listener)

	result, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", result.Symbol)
	assert.Equal(t, models.StatusActive, result.Status)
	assert.Equal(t, 80, result.ConfidenceScore)
	assert.Same(t, result, m.Result("BTCUSDT"))
	assert.NotNil(t, m.Book("BTCUSDT"))

	require.Len(t, store.analyses, 1)
	require.Len(t, listener.results, 1)
	assert.Equal(t, 1, listener.books)

	status, ok := m.trackers["BTCUSDT"].Previous()
	assert.True(t, ok)
	assert.Equal(t, models.StatusActive, status)
}

func TestAnalyzeSymbolKeepsPreviousOnError(t *testing.T) {
	source := healthySource()
	m := newTestMonitor(source, &fakeStore{})

	first, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	source.mu.Lock()
	source.klinesErr = errors.New("503")
	source.mu.Unlock()

	second, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	assert.Error(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, m.Result("BTCUSDT"))
}

func TestAnalyzeSymbolWithoutBook(t *testing.T) {
	source := healthySource()
	source.depthErr = errors.New("timeout")
	m := newTestMonitor(source, &fakeStore{})

	result, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.OrderBookBias)
	assert.Equal(t, models.StatusPotential, result.Status)
	assert.Nil(t, m.Book("BTCUSDT"))
}

func TestMalformedSnapshotTreatedAsMissing(t *testing.T) {
	source := healthySource()
	source.depth = []*models.DepthSnapshot{{
		Bids: []models.OrderBookLevel{{Price: "abc", Amount: "1"}},
	}}
	m := newTestMonitor(source, &fakeStore{})

	result, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.OrderBookBias)
}

func TestNonFiniteSnapshotTreatedAsMissing(t *testing.T) {
	source := healthySource()
	source.depth = []*models.DepthSnapshot{{
		Bids: []models.OrderBookLevel{{Price: "100", Amount: "NaN"}},
		Asks: []models.OrderBookLevel{{Price: "Inf", Amount: "1"}},
	}}
	m := newTestMonitor(source, &fakeStore{})

	result, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.OrderBookBias)
	assert.Equal(t, models.StatusPotential, result.Status)
	assert.Nil(t, m.Book("BTCUSDT"))

	// Детектор спуфинга такой снимок тоже не видит
	m.PollOrderBooks(context.Background())
	assert.Equal(t, 0, m.spoof.Detector("BTCUSDT").TrackedWalls())
}

func TestInsufficientCandles(t *testing.T) {
	source := healthySource()
	source.klines["15m"] = zigzagUp(20)
	m := newTestMonitor(source, &fakeStore{})

	result, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestStorageErrorDoesNotFailAnalysis(t *testing.T) {
	m := newTestMonitor(healthySource(), &fakeStore{err: errors.New("influx down")})

	_, err := m.AnalyzeSymbol(context.Background(), "BTCUSDT")
	assert.NoError(t, err)
}

func TestPollOrderBooksDetectsSpoof(t *testing.T) {
	source := &fakeSource{depth: []*models.DepthSnapshot{wallDepth(), supportiveDepth()}}
	store := &fakeStore{}
	listener := &fakeListener{}
	m := newTestMonitor(source, store)
	m.AddListener(listener)

	now := testTime
	m.now = func() time.Time { return now }

	m.PollOrderBooks(context.Background())
	assert.Empty(t, listener.alerts)

	now = testTime.Add(6 * time.Second)
	m.PollOrderBooks(context.Background())

	require.Len(t, listener.alerts, 1)
	assert.Equal(t, 100.0, listener.alerts[0].Price)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, 2, listener.books)

	alert, ok := m.ActiveAlert("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, listener.alerts[0].ID, alert.ID)

	now = testTime.Add(11 * time.Second)
	_, ok = m.ActiveAlert("BTCUSDT")
	assert.False(t, ok)
}

func TestPollOrderBooksSkipsFailedFetch(t *testing.T) {
	source := &fakeSource{depthErr: errors.New("timeout")}
	listener := &fakeListener{}
	m := newTestMonitor(source, &fakeStore{})
	m.AddListener(listener)

	m.PollOrderBooks(context.Background())
	assert.Equal(t, 0, listener.books)
	assert.Nil(t, m.Book("BTCUSDT"))
}

func TestAnalyzeAllCoversSymbols(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	m := New(cfg, healthySource(), &fakeStore{})

	m.AnalyzeAll(context.Background())

	results := m.Results()
	assert.Len(t, results, 3)
	for _, symbol := range cfg.Trading.Symbols {
		assert.Equal(t, symbol, results[symbol].Symbol)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newTestMonitor(healthySource(), &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Result("BTCUSDT") != nil }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("монитор не остановился")
	}
}
