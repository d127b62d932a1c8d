// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a SugaredLogger configured for the given mode. "production"
// emits JSON at info level; anything else is a human-readable development
// logger at debug level.
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if mode == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
