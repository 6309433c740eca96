package main

import (
	"os"

	"github.com/blendle/zapdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds zap's development logger when development is set.
// Otherwise it logs JSON, Stackdriver-formatted when APP_ENV is production.
func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	var opts []zap.Option
	switch {
	case development:
		cfg = zap.NewDevelopmentConfig()
	case isProduction():
		cfg = zapdriver.NewProductionConfig()
		opts = append(opts, zapdriver.WrapCore())
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build(opts...)
}

func isProduction() bool {
	return os.Getenv("APP_ENV") == "production"
}
