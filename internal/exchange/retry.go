package exchange

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"go.uber.org/zap"
)

// Множитель паузы при превышении лимита запросов
const rateLimitFactor = 5

// binance -1003 TOO_MANY_REQUESTS
const codeTooManyRequests = -1003

func (c *BinanceClient) retry(ctx context.Context, name string, op func(context.Context) error) error {
	b := &backoff.Backoff{
		Min:    c.minDelay,
		Max:    c.maxDelay,
		Factor: 2,
		Jitter: true,
	}
	return retry(ctx, name, c.retries, b, op)
}

// retry выполняет op до attempts+1 раз с экспоненциальной паузой между попытками.
// Отмена контекста прерывает ожидание.
func retry(ctx context.Context, name string, attempts int, b *backoff.Backoff, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= attempts {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := b.Duration()
		if isRateLimited(err) {
			delay *= rateLimitFactor
		}

		logger.Warn("Повтор запроса к бирже",
			zap.String("request", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isRateLimited(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == codeTooManyRequests || apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
