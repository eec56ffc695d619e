// Package logging builds the zap loggers used across the panel.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects the zap preset, level and encoding.
type Config struct {
	Environment string
	Level       string
	Format      string
	// OutputPaths defaults to stderr so stdout stays free for command output.
	OutputPaths []string
}

// New builds a logger from cfg. An unknown level is an error rather than a silent default.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	if cfg.Environment == EnvironmentProduction {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Format {
	case FormatJSON:
		config.Encoding = FormatJSON
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case FormatConsole, "":
		config.Encoding = FormatConsole
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	config.OutputPaths = []string{"stderr"}
	if len(cfg.OutputPaths) > 0 {
		config.OutputPaths = cfg.OutputPaths
	}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(zap.AddCaller())
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "off", "none":
		return zapcore.FatalLevel + 1, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
