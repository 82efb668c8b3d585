// Package logging builds the zap loggers used across the server
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger. "release" mode uses the production JSON config,
// anything else the colored development config
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	// stdout carries the MCP stdio transport
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// RedactKey masks a credential, leaving the first and last 4 chars
func RedactKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Payload describes a byte payload without logging its contents
func Payload(key string, data []byte) zap.Field {
	if len(data) > 1000 {
		return zap.String(key, fmt.Sprintf("[%d bytes - too large to log]", len(data)))
	}
	return zap.Int(key+"_bytes", len(data))
}
