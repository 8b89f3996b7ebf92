package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger from the log section. Empty fields keep the
// zap production defaults.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	return zc.Build()
}
