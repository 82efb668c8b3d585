package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// EnvPrefix is the prefix for environment overrides, e.g. SCENE_EDIT_BACKEND_ENDPOINT
const EnvPrefix = "SCENE_EDIT"

// Backend families
const (
	FamilySDWebUI = types.FamilySDWebUI
	FamilyGemini  = types.FamilyGemini
	FamilyGeneric = types.FamilyGeneric
)

// Config holds the configuration for the scene edit server
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Background BackgroundConfig `mapstructure:"background"`
	Scene      SceneConfig      `mapstructure:"scene"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Timeouts   TimeoutConfig    `mapstructure:"timeouts"`
}

// BackendConfig selects and addresses the remote edit service
type BackendConfig struct {
	Family   string        `mapstructure:"family"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// DefaultsConfig holds generation parameters used when a request omits them
type DefaultsConfig struct {
	NegativePrompt string  `mapstructure:"negative_prompt"`
	Strength       float64 `mapstructure:"strength"`
	Steps          int     `mapstructure:"steps"`
	GuidanceScale  float64 `mapstructure:"guidance_scale"`
	Sampler        string  `mapstructure:"sampler"`
	Width          int     `mapstructure:"width"`
	Height         int     `mapstructure:"height"`
}

// StorageConfig locates uploads, operation records and the document store
type StorageConfig struct {
	Root           string `mapstructure:"root"`
	UploadDir      string `mapstructure:"upload_dir"`
	DocumentsFile  string `mapstructure:"documents_file"`
	MaxImageSizeMB int    `mapstructure:"max_image_size_mb"`
	MaxReferences  int    `mapstructure:"max_references"`
}

// RedisConfig configures the edit-result cache
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CaptureConfig orders the capture strategies
type CaptureConfig struct {
	Strategies []string `mapstructure:"strategies"`
}

// BackgroundConfig controls the optional background normalization step
type BackgroundConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Algorithm string  `mapstructure:"algorithm"`
	Threshold float64 `mapstructure:"threshold"`
}

// SceneConfig describes the scene loaded at startup and its viewport
type SceneConfig struct {
	Source     string  `mapstructure:"source"` // canvas or display
	Display    int     `mapstructure:"display"`
	File       string  `mapstructure:"file"`
	Width      int     `mapstructure:"width"`
	Height     int     `mapstructure:"height"`
	Resolution float64 `mapstructure:"resolution"`
}

// ServerConfig selects the transport
type ServerConfig struct {
	Mode         string        `mapstructure:"mode"` // mcp or http
	Addr         string        `mapstructure:"addr"`
	GinMode      string        `mapstructure:"gin_mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Mode string `mapstructure:"mode"` // release or debug
}

// LoadConfig loads .env, then the optional YAML file at path, then
// SCENE_EDIT_* environment overrides
func LoadConfig(path string) (*Config, error) {
	loadDotenv()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Backend.Family = strings.ToLower(strings.TrimSpace(cfg.Backend.Family))
	cfg.Timeouts = applyTimeoutEnv(cfg.Timeouts)

	return &cfg, nil
}

func loadDotenv() {
	paths := []string{".env"}
	if alt := os.Getenv(EnvPrefix + "_ENV_FILE"); alt != "" {
		paths = append([]string{alt}, paths...)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			// existing environment wins over the file
			_ = godotenv.Load(p)
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.family", FamilySDWebUI)
	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.model", "gemini-2.5-flash-image-preview")
	v.SetDefault("backend.attempts", 1)
	v.SetDefault("backend.backoff", 2*time.Second)

	v.SetDefault("defaults.negative_prompt", "")
	v.SetDefault("defaults.strength", 0.75)
	v.SetDefault("defaults.steps", 30)
	v.SetDefault("defaults.guidance_scale", 7.0)
	v.SetDefault("defaults.sampler", "Euler a")
	v.SetDefault("defaults.width", 0)
	v.SetDefault("defaults.height", 0)

	v.SetDefault("storage.root", "./scene_edit_data")
	v.SetDefault("storage.upload_dir", "scene-edits")
	v.SetDefault("storage.documents_file", "documents.yaml")
	v.SetDefault("storage.max_image_size_mb", 5)
	v.SetDefault("storage.max_references", 4)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("capture.strategies", []string{"readback", "offscreen", "layers"})

	v.SetDefault("background.enabled", false)
	v.SetDefault("background.algorithm", "floodfill")
	v.SetDefault("background.threshold", 0)

	v.SetDefault("scene.source", "canvas")
	v.SetDefault("scene.display", 0)
	v.SetDefault("scene.file", "")
	v.SetDefault("scene.width", 1280)
	v.SetDefault("scene.height", 720)
	v.SetDefault("scene.resolution", 1)

	v.SetDefault("server.mode", "mcp")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)

	v.SetDefault("log.mode", "debug")

	t := DefaultTimeouts()
	v.SetDefault("timeouts.probe", t.Probe)
	v.SetDefault("timeouts.edit", t.Edit)
	v.SetDefault("timeouts.capture_queue", t.CaptureQueue)
	v.SetDefault("timeouts.max_operation_time", t.MaxOperationTime)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend.Family {
	case FamilySDWebUI, FamilyGemini, FamilyGeneric:
	default:
		return fmt.Errorf("unknown backend family %q (want sdwebui, gemini or generic)", c.Backend.Family)
	}
	if c.Backend.Attempts <= 0 {
		return errors.New("backend attempts must be positive")
	}
	if c.Defaults.Strength < 0 || c.Defaults.Strength > 1 {
		return fmt.Errorf("default strength %g must be within 0.0-1.0", c.Defaults.Strength)
	}
	if c.Storage.MaxImageSizeMB <= 0 {
		return errors.New("max image size must be positive")
	}
	if c.Storage.UploadDir == "" {
		return errors.New("upload dir is required")
	}
	switch c.Background.Algorithm {
	case "threshold", "floodfill":
	default:
		return fmt.Errorf("unknown background algorithm %q", c.Background.Algorithm)
	}
	switch c.Server.Mode {
	case "mcp", "http":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	switch c.Scene.Source {
	case "canvas", "display":
	default:
		return fmt.Errorf("unknown scene source %q (want canvas or display)", c.Scene.Source)
	}
	if c.Scene.Width <= 0 || c.Scene.Height <= 0 {
		return errors.New("scene viewport size must be positive")
	}

	// Create storage root if it doesn't exist
	if err := os.MkdirAll(c.Storage.Root, 0755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}

	return nil
}
