// Package logging builds the zap logger shared by the server, the HTTP
// middleware and the reminder scheduler. The billing core never logs.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/contract-engine/config"
)

// New creates a SugaredLogger for the configured level. Debug selects the
// development encoder.
func New(cfg config.LogConfig) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Level == "debug" {
		zc = zap.NewDevelopmentConfig()
	}

	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop is a logger that discards everything. Tests use it.
func Nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }
