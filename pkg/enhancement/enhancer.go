package enhancement

import (
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
)

// Enhancer handles local image enhancement operations
type Enhancer struct {
	storage *storage.Storage
	log     *zap.Logger
}

// NewEnhancer creates a new Enhancer instance
func NewEnhancer(store *storage.Storage, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		storage: store,
		log:     logger,
	}
}
