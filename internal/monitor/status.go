package monitor

import "github.com/skalibog/cryptoscalp/pkg/models"

// StatusTracker помнит предыдущий статус одного инструмента.
// Нужен только для уведомлений: сам статус каждый прогон считается заново.
type StatusTracker struct {
	previous models.Status
	seen     bool
}

// Observe запоминает новый статус и сообщает, произошел ли переход в ACTIVE
func (t *StatusTracker) Observe(status models.Status) bool {
	entered := status == models.StatusActive && (!t.seen || t.previous != models.StatusActive)
	t.previous = status
	t.seen = true
	return entered
}

// Previous последний известный статус
func (t *StatusTracker) Previous() (models.Status, bool) {
	return t.previous, t.seen
}
