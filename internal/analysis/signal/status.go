package signal

import (
	"fmt"

	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// ResolveStatus определяет итоговый статус. Статус пересчитывается каждый прогон,
// переходов между прогонами нет. Для POTENTIAL и слабого NO_TRADE добавляется причина для отображения.
func ResolveStatus(reasons *Reasons, score int, cfg config.StatusConfig) models.Status {
	switch {
	case reasons.Blocked():
		return models.StatusNoTrade
	case score > cfg.Active:
		return models.StatusActive
	case score > cfg.Potential:
		reasons.Block(fmt.Sprintf("Confidence Score too low (< %d%%)", cfg.Active))
		return models.StatusPotential
	default:
		reasons.Block("Insufficient technical confluence")
		return models.StatusNoTrade
	}
}

// ClampScore ограничивает уверенность диапазоном [0, 100]
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
