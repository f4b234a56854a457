// Package spoof отслеживает крупные заявки между снимками стакана и
// сообщает о стенах, снятых подозрительно быстро
package spoof

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// WallTracker цена стены -> время, когда она появилась впервые
type WallTracker struct {
	firstSeen map[float64]time.Time
}

// NewWallTracker создает пустой трекер
func NewWallTracker() *WallTracker {
	return &WallTracker{firstSeen: make(map[float64]time.Time)}
}

// Track запоминает стену, если она еще не отслеживается
func (w *WallTracker) Track(price float64, now time.Time) {
	if _, ok := w.firstSeen[price]; !ok {
		w.firstSeen[price] = now
	}
}

// FirstSeen время появления стены
func (w *WallTracker) FirstSeen(price float64) (time.Time, bool) {
	t, ok := w.firstSeen[price]
	return t, ok
}

// Forget перестает отслеживать стену
func (w *WallTracker) Forget(price float64) {
	delete(w.firstSeen, price)
}

// Prices отслеживаемые цены по возрастанию
func (w *WallTracker) Prices() []float64 {
	prices := make([]float64, 0, len(w.firstSeen))
	for p := range w.firstSeen {
		prices = append(prices, p)
	}
	sort.Float64s(prices)
	return prices
}

// Len количество отслеживаемых стен
func (w *WallTracker) Len() int {
	return len(w.firstSeen)
}

// Detector детектор спуфинга для одного инструмента
type Detector struct {
	mu        sync.Mutex
	symbol    string
	threshold float64
	minLife   time.Duration
	maxLife   time.Duration
	alertTTL  time.Duration
	walls     *WallTracker
	active    *models.SpoofAlert
}

// NewDetector создает детектор
func NewDetector(symbol string, cfg config.SpoofConfig) *Detector {
	return &Detector{
		symbol:    symbol,
		threshold: cfg.Threshold,
		minLife:   time.Duration(cfg.MinLifeMS) * time.Millisecond,
		maxLife:   time.Duration(cfg.MaxLifeMS) * time.Millisecond,
		alertTTL:  time.Duration(cfg.AlertTTLMS) * time.Millisecond,
		walls:     NewWallTracker(),
	}
}

// Observe обрабатывает очередной снимок стакана и возвращает новые предупреждения.
// Пустой снимок пропускается, состояние трекера не меняется.
func (d *Detector) Observe(book *models.OrderBookState, now time.Time) []models.SpoofAlert {
	if book == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Текущие стены
	current := make(map[float64]struct{})
	for _, side := range [][]models.OrderBookEntry{book.Bids, book.Asks} {
		for _, entry := range side {
			if entry.Total > d.threshold {
				current[entry.Price] = struct{}{}
				d.walls.Track(entry.Price, now)
			}
		}
	}

	// Исчезнувшие стены: короткоживущие дают предупреждение, остальные просто забываются
	var alerts []models.SpoofAlert
	for _, price := range d.walls.Prices() {
		if _, ok := current[price]; ok {
			continue
		}

		firstSeen, _ := d.walls.FirstSeen(price)
		duration := now.Sub(firstSeen)
		if duration > d.minLife && duration < d.maxLife {
			alert := models.SpoofAlert{
				ID:        uuid.NewString(),
				Symbol:    d.symbol,
				Price:     price,
				Duration:  duration,
				Message:   fmt.Sprintf("Spoof Alert: wall at %.2f pulled in %.1fs", price, duration.Seconds()),
				EmittedAt: now,
				ExpiresAt: now.Add(d.alertTTL),
			}
			alerts = append(alerts, alert)
			d.active = &alert
		}
		d.walls.Forget(price)
	}

	return alerts
}

// Active возвращает действующее предупреждение, если оно еще не истекло
func (d *Detector) Active(now time.Time) (models.SpoofAlert, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == nil {
		return models.SpoofAlert{}, false
	}
	if d.active.Expired(now) {
		d.active = nil
		return models.SpoofAlert{}, false
	}
	return *d.active, true
}

// TrackedWalls количество отслеживаемых стен
func (d *Detector) TrackedWalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.walls.Len()
}
