package config

import (
	"os"
	"strconv"
	"time"
)

// TimeoutConfig holds all configurable timeout values
type TimeoutConfig struct {
	// Probe bounds a backend reachability check
	Probe time.Duration `mapstructure:"probe"`

	// Edit bounds one remote edit call
	Edit time.Duration `mapstructure:"edit"`

	// CaptureQueue is how long a capture waits for the one running before it
	CaptureQueue time.Duration `mapstructure:"capture_queue"`

	// MaxOperationTime is when to clean up stale pending operations
	MaxOperationTime time.Duration `mapstructure:"max_operation_time"`
}

// DefaultTimeouts returns the default timeout configuration
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Probe:            5 * time.Second,
		Edit:             120 * time.Second,
		CaptureQueue:     30 * time.Second,
		MaxOperationTime: 10 * time.Minute,
	}
}

// LoadTimeouts loads timeout configuration from environment variables
func LoadTimeouts() TimeoutConfig {
	return applyTimeoutEnv(DefaultTimeouts())
}

// applyTimeoutEnv overrides config with the whole-second (minute for the
// operation age) environment variables
func applyTimeoutEnv(config TimeoutConfig) TimeoutConfig {
	if val := os.Getenv("SCENE_EDIT_PROBE_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.Probe = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("SCENE_EDIT_EDIT_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.Edit = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("SCENE_EDIT_CAPTURE_QUEUE_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.CaptureQueue = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("SCENE_EDIT_MAX_OPERATION_TIME"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes > 0 {
			config.MaxOperationTime = time.Duration(minutes) * time.Minute
		}
	}

	return config
}

// TestTimeouts returns timeout configuration suitable for testing
func TestTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Probe:            500 * time.Millisecond,
		Edit:             2 * time.Second,
		CaptureQueue:     200 * time.Millisecond,
		MaxOperationTime: 1 * time.Minute,
	}
}
