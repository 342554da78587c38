// Package logger builds the service's zap loggers.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for env. Development gets a console encoder; every
// other environment gets JSON with ISO 8601 timestamps. An empty level keeps
// the environment default.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" || env == "test" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// NewNamed builds a logger for env and tags every entry with service.
func NewNamed(env, level, service string) (*zap.Logger, error) {
	l, err := New(env, level)
	if err != nil {
		return nil, err
	}
	return l.Named(service).With(zap.String("service", service)), nil
}
