// Package storage сохраняет результаты анализа и предупреждения о спуфинге
package storage

import (
	"context"
	"fmt"

	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

// Storage интерфейс хранилища истории
type Storage interface {
	SaveAnalysis(ctx context.Context, result *models.AnalysisResult) error
	SaveSpoofAlert(ctx context.Context, alert models.SpoofAlert) error
	GetAnalysisHistory(ctx context.Context, symbol string, limit int) ([]*models.AnalysisResult, error)
	Close()
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "none":
		return NopStorage{}, nil
	case "influxdb":
		s, err := NewInfluxDBStorage(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}

// NopStorage ничего не сохраняет
type NopStorage struct{}

func (NopStorage) SaveAnalysis(context.Context, *models.AnalysisResult) error { return nil }

func (NopStorage) SaveSpoofAlert(context.Context, models.SpoofAlert) error { return nil }

func (NopStorage) GetAnalysisHistory(context.Context, string, int) ([]*models.AnalysisResult, error) {
	return nil, nil
}

func (NopStorage) Close() {}
