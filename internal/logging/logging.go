// Package logging собирает zap-логгер по уровню -v.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level: 0 -> error, 1 -> info, 2+ -> debug
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.ErrorLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func Config(verbosity int) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(verbosity))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	// поллер пишет однотипные строки раз в секунду, сэмплинг бы их съел
	cfg.Sampling = nil
	cfg.DisableStacktrace = verbosity < 2
	return cfg
}

func New(verbosity int) (*zap.Logger, error) {
	return Config(verbosity).Build()
}
