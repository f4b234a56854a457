package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// BinanceClient клиент для получения рыночных данных Binance
type BinanceClient struct {
	futures    *futures.Client
	spot       *binance.Client
	useFutures bool
	retries    int
	minDelay   time.Duration
	maxDelay   time.Duration
}

// NewBinanceClient создает новый клиент Binance.
// По умолчанию используется спотовый рынок, futures: true переключает на USDT-M фьючерсы.
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		// Переключатели тестовой сети глобальные и читаются при создании клиента
		binance.UseTestnet = true
		futures.UseTestnet = true
	}

	if cfg.Retries < 0 {
		return nil, fmt.Errorf("отрицательное число повторов: %d", cfg.Retries)
	}

	return &BinanceClient{
		futures:    binance.NewFuturesClient(cfg.APIKey, cfg.APISecret),
		spot:       binance.NewClient(cfg.APIKey, cfg.APISecret),
		useFutures: cfg.Futures,
		retries:    cfg.Retries,
		minDelay:   time.Duration(cfg.RetryMinMS) * time.Millisecond,
		maxDelay:   time.Duration(cfg.RetryMaxMS) * time.Millisecond,
	}, nil
}

// GetKlines получает исторические свечи, последняя свеча может быть незакрытой
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	var candles []*models.Candle

	err := c.retry(ctx, "klines "+symbol+" "+interval, func(ctx context.Context) error {
		var err error
		if c.useFutures {
			candles, err = c.futuresKlines(ctx, symbol, interval, limit)
		} else {
			candles, err = c.spotKlines(ctx, symbol, interval, limit)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	return candles, nil
}

func (c *BinanceClient) spotKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]*models.Candle, len(klines))
	for i, k := range klines {
		candle, err := parseKline(symbol, interval, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, err
		}
		candles[i] = candle
	}
	return candles, nil
}

func (c *BinanceClient) futuresKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]*models.Candle, len(klines))
	for i, k := range klines {
		candle, err := parseKline(symbol, interval, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, err
		}
		candles[i] = candle
	}
	return candles, nil
}

// parseKline переводит строковые поля свечи биржи в числа
func parseKline(symbol, interval string, openTime, closeTime int64, open, high, low, closePrice, volume string) (*models.Candle, error) {
	values := [5]float64{}
	for i, raw := range [5]string{open, high, low, closePrice, volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга свечи %s %s: %w", symbol, interval, err)
		}
		values[i] = v
	}

	return &models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(openTime),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(closeTime),
	}, nil
}

// GetOrderBook получает снимок стакана заявок. Уровни остаются строками,
// разбор и проверка выполняются в пакете orderbook.
func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*models.DepthSnapshot, error) {
	var snapshot *models.DepthSnapshot

	err := c.retry(ctx, "depth "+symbol, func(ctx context.Context) error {
		var err error
		if c.useFutures {
			snapshot, err = c.futuresDepth(ctx, symbol, limit)
		} else {
			snapshot, err = c.spotDepth(ctx, symbol, limit)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", err)
	}

	return snapshot, nil
}

func (c *BinanceClient) spotDepth(ctx context.Context, symbol string, limit int) (*models.DepthSnapshot, error) {
	ob, err := c.spot.NewDepthService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &models.DepthSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Bids:      make([]models.OrderBookLevel, len(ob.Bids)),
		Asks:      make([]models.OrderBookLevel, len(ob.Asks)),
	}

	for i, bid := range ob.Bids {
		snapshot.Bids[i] = models.OrderBookLevel{Price: bid.Price, Amount: bid.Quantity}
	}
	for i, ask := range ob.Asks {
		snapshot.Asks[i] = models.OrderBookLevel{Price: ask.Price, Amount: ask.Quantity}
	}

	return snapshot, nil
}

func (c *BinanceClient) futuresDepth(ctx context.Context, symbol string, limit int) (*models.DepthSnapshot, error) {
	ob, err := c.futures.NewDepthService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now()
	if ob.Time > 0 {
		timestamp = time.UnixMilli(ob.Time)
	}

	snapshot := &models.DepthSnapshot{
		Symbol:    symbol,
		Timestamp: timestamp,
		Bids:      make([]models.OrderBookLevel, len(ob.Bids)),
		Asks:      make([]models.OrderBookLevel, len(ob.Asks)),
	}

	for i, bid := range ob.Bids {
		snapshot.Bids[i] = models.OrderBookLevel{Price: bid.Price, Amount: bid.Quantity}
	}
	for i, ask := range ob.Asks {
		snapshot.Asks[i] = models.OrderBookLevel{Price: ask.Price, Amount: ask.Quantity}
	}

	return snapshot, nil
}
