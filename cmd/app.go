package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
	"github.com/gomcpgo/scene_edit_ai/pkg/cache"
	"github.com/gomcpgo/scene_edit_ai/pkg/capture"
	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/config"
	"github.com/gomcpgo/scene_edit_ai/pkg/document"
	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/enhancement"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/logging"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
	"github.com/gomcpgo/scene_edit_ai/pkg/render"
	"github.com/gomcpgo/scene_edit_ai/pkg/scene"
	"github.com/gomcpgo/scene_edit_ai/pkg/screen"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// app wires every component from one configuration
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	cache    cache.Cache
	storage  *storage.Storage
	docs     *document.FileStore
	live     *scene.Scene
	capturer *capture.Engine
	editor   *editing.Editor
	enhancer *enhancement.Enhancer
	orch     *workflow.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	logger.Info("configuration loaded",
		zap.String("family", cfg.Backend.Family),
		zap.String("endpoint", cfg.Backend.Endpoint),
		zap.String("api_key", logging.RedactKey(cfg.Backend.APIKey)),
		zap.String("storage_root", cfg.Storage.Root),
		zap.String("scene_source", cfg.Scene.Source))

	editClient, err := client.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create edit client: %w", err)
	}
	resultCache := cache.Open(ctx, &cfg.Redis, logger)
	editClient = cache.WithCache(editClient, resultCache, logger)

	store := storage.NewStorage(cfg.Storage.Root)
	docs, err := document.Open(filepath.Join(cfg.Storage.Root, cfg.Storage.DocumentsFile))
	if err != nil {
		resultCache.Close()
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	renderer, live, err := openRenderer(cfg, logger)
	if err != nil {
		resultCache.Close()
		return nil, err
	}
	if live != nil {
		if err := syncScene(ctx, docs, live); err != nil {
			resultCache.Close()
			return nil, err
		}
	}

	capturer := capture.New(renderer, logger.Named("capture"),
		capture.WithQueueTimeout(cfg.Timeouts.CaptureQueue),
		capture.WithStrategies(cfg.Capture.Strategies...))
	editor := editing.NewEditor(editClient, store, cfg.Storage.MaxReferences, logger.Named("editing"))
	placer := placement.New(docs, store, cfg.Storage.UploadDir, logger.Named("placement"))

	orch := workflow.New(capturer, editor, placer, docs, store, nil, nil, workflow.Options{
		Background: background.Options{
			Algorithm: cfg.Background.Algorithm,
			Threshold: cfg.Background.Threshold,
		},
		Normalize: cfg.Background.Enabled,
		MaxAge:    cfg.Timeouts.MaxOperationTime,
		Live:      live,
	}, logger.Named("workflow"))

	return &app{
		cfg:      cfg,
		log:      logger,
		cache:    resultCache,
		storage:  store,
		docs:     docs,
		live:     live,
		capturer: capturer,
		editor:   editor,
		enhancer: enhancement.NewEnhancer(store, logger.Named("enhancement")),
		orch:     orch,
	}, nil
}

func (a *app) Close() {
	a.orch.Close()
	if err := a.cache.Close(); err != nil {
		a.log.Warn("failed to close cache", zap.Error(err))
	}
}

// openRenderer returns the software canvas for a scene file, or a desktop
// display when the scene is shown by an external viewer
func openRenderer(cfg *config.Config, logger *zap.Logger) (render.Renderer, *scene.Scene, error) {
	if cfg.Scene.Source == "display" {
		logger.Info("capturing from display", zap.Int("display", cfg.Scene.Display))
		return screen.NewDisplay(cfg.Scene.Display, geometry.Identity), nil, nil
	}

	var live *scene.Scene
	if cfg.Scene.File != "" {
		s, err := scene.Load(cfg.Scene.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load scene: %w", err)
		}
		live = s
	} else {
		live = scene.New("scene", float64(cfg.Scene.Width), float64(cfg.Scene.Height))
	}
	canvas := scene.NewCanvas(live, cfg.Scene.Width, cfg.Scene.Height, cfg.Scene.Resolution,
		scene.FullCapabilities, logger.Named("canvas"))
	return canvas, live, nil
}

// syncScene makes the loaded scene the active document scene
func syncScene(ctx context.Context, docs *document.FileStore, live *scene.Scene) error {
	_, err := docs.Scene(ctx, live.ID)
	switch {
	case errors.Is(err, document.ErrNotFound):
		if _, err := docs.AddScene(document.Scene{
			ID:     live.ID,
			Name:   live.ID,
			Width:  live.Width,
			Height: live.Height,
		}); err != nil {
			return fmt.Errorf("failed to register scene: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up scene: %w", err)
	}
	if err := docs.Activate(live.ID); err != nil {
		return fmt.Errorf("failed to activate scene: %w", err)
	}
	return nil
}
