package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/api"
	"github.com/gomcpgo/scene_edit_ai/pkg/config"
	"github.com/gomcpgo/scene_edit_ai/pkg/handler"
	"github.com/gomcpgo/scene_edit_ai/pkg/logging"
)

// Version information (set by build script)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  string
		sceneFile   string
		httpMode    bool
		versionFlag bool
		// Smoke-test flags
		probe      bool
		edit       bool
		normalize  bool
		inputImage string
		prompt     string
		outputFile string
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&sceneFile, "scene", "", "Scene file to load, overrides scene.file")
	flag.BoolVar(&httpMode, "http", false, "Serve the HTTP API instead of MCP over stdio")
	flag.BoolVar(&versionFlag, "version", false, "Show version information")
	flag.BoolVar(&probe, "probe", false, "Check whether the configured backend is reachable")
	flag.BoolVar(&edit, "edit", false, "Edit the -input image with the -p instruction")
	flag.BoolVar(&normalize, "normalize", false, "Remove the white background of the -input image")
	flag.StringVar(&inputImage, "input", "", "Input image path for -edit and -normalize")
	flag.StringVar(&prompt, "p", defaultTestInstruction, "Instruction for -edit")
	flag.StringVar(&outputFile, "output", "", "Output filename for -edit and -normalize")
	flag.Parse()

	if versionFlag {
		fmt.Printf("Scene Edit AI Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if sceneFile != "" {
		cfg.Scene.File = sceneFile
	}
	if httpMode {
		cfg.Server.Mode = "http"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	// Handle command-line smoke tests
	if probe || edit || normalize {
		if err := runSmokeTest(ctx, a, smokeOptions{
			probe:     probe,
			edit:      edit,
			normalize: normalize,
			input:     inputImage,
			prompt:    prompt,
			output:    outputFile,
		}); err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	logger.Info("starting scene edit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("mode", cfg.Server.Mode))

	switch cfg.Server.Mode {
	case "http":
		err = serveHTTP(ctx, a)
	default:
		err = serveMCP(a)
	}
	if err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func serveMCP(a *app) error {
	s := server.NewMCPServer("Scene Edit AI", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	handler.NewSceneEditHandler(handler.Deps{
		Orchestrator: a.orch,
		Capturer:     a.capturer,
		Editor:       a.editor,
		Enhancer:     a.enhancer,
		Storage:      a.storage,
	}, a.log).Register(s)

	return server.ServeStdio(s)
}

func serveHTTP(ctx context.Context, a *app) error {
	gin.SetMode(a.cfg.Server.GinMode)
	maxBytes := int64(a.cfg.Storage.MaxImageSizeMB) * 1024 * 1024
	router := api.NewServer(a.orch, a.editor, a.storage, Version, maxBytes, a.log).Router()

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
