// Package logging builds the process-wide zap logger. cmd/streamgod calls New
// once, after configuration has loaded, and passes the *zap.SugaredLogger
// explicitly to what logs; this package keeps no package-level logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development-friendly console logger. debug enables
// debug-level output; production deployments should set it false.
func New(debug bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than crashing the process over
		// logger construction.
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
