// Package logging builds the process-wide zap.Logger every ragsuite
// service entrypoint uses, selecting production or development encoding
// from RAGSUITE_ENV per SPEC_FULL.md's Ambient Stack logging section.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for service, honoring RAGSUITE_ENV
// ("production" by default) and level (empty defaults to "info").
func New(service, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("RAGSUITE_ENV") == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service)), nil
}
