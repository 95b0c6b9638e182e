package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDevLogger builds a console logger at level.
func NewDevLogger(level zapcore.Level) (*zap.Logger, error) {
	return build(zap.NewDevelopmentConfig(), level)
}

// NewProdLogger builds a JSON logger at level.
func NewProdLogger(level zapcore.Level) (*zap.Logger, error) {
	return build(zap.NewProductionConfig(), level)
}

// New parses level ("debug", "info", ...) and picks the builder.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if development {
		return NewDevLogger(lvl)
	}
	return NewProdLogger(lvl)
}

func build(cfg zap.Config, level zapcore.Level) (*zap.Logger, error) {
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}
