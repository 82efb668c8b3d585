package client

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/config"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// New builds the backend selected by cfg.Backend.Family, wrapped with retry
// when more than one attempt is configured
func New(cfg *config.Config, logger *zap.Logger) (EditClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := Settings{
		Endpoint:     cfg.Backend.Endpoint,
		APIKey:       cfg.Backend.APIKey,
		Model:        cfg.Backend.Model,
		EditTimeout:  cfg.Timeouts.Edit,
		ProbeTimeout: cfg.Timeouts.Probe,
		Logger:       logger.Named("client"),
	}

	var c EditClient
	switch cfg.Backend.Family {
	case types.FamilySDWebUI:
		s.Model = ""
		c = NewSDWebUIClient(s, Defaults{
			NegativePrompt: cfg.Defaults.NegativePrompt,
			Strength:       cfg.Defaults.Strength,
			Steps:          cfg.Defaults.Steps,
			GuidanceScale:  cfg.Defaults.GuidanceScale,
			Sampler:        cfg.Defaults.Sampler,
			Width:          cfg.Defaults.Width,
			Height:         cfg.Defaults.Height,
		})
	case types.FamilyGemini:
		c = NewGeminiClient(s)
	case types.FamilyGeneric:
		c = NewGenericClient(s)
	default:
		return nil, fmt.Errorf("unknown backend family %q", cfg.Backend.Family)
	}

	return WithRetry(c, cfg.Backend.Attempts, cfg.Backend.Backoff, s.Logger), nil
}
