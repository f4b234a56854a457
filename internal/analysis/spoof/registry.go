package spoof

import (
	"sync"

	"github.com/skalibog/cryptoscalp/internal/config"
)

// Registry хранит по одному детектору на инструмент
type Registry struct {
	mu        sync.Mutex
	config    config.SpoofConfig
	detectors map[string]*Detector
}

// NewRegistry создает реестр детекторов
func NewRegistry(cfg config.SpoofConfig) *Registry {
	return &Registry{
		config:    cfg,
		detectors: make(map[string]*Detector),
	}
}

// Detector возвращает детектор инструмента, создавая его при первом обращении
func (r *Registry) Detector(symbol string) *Detector {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.detectors[symbol]
	if !ok {
		d = NewDetector(symbol, r.config)
		r.detectors[symbol] = d
	}
	return d
}
