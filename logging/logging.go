// Package logging builds the process logger from config.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mgmeyers/pdfworkspace/config"
)

// New returns a JSON production logger or a console development logger at
// the configured level. Logs go to stderr so stdout stays machine readable.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config

	if cfg.JSON {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}

	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg.Level = atomic
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
