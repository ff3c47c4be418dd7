// Package log builds the zap loggers used by the command line tool.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to stderr. Verbose loggers use the
// development config with debug messages and caller information, the others
// the production config at info level.
func New(verbose bool) (*zap.Logger, error) {
	return config(verbose).Build()
}

func config(verbose bool) zap.Config {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Sampling = nil
		cfg.DisableCaller = true
	}
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	return cfg
}

// ComparedHook returns a hook logging every differing primitive value at
// debug level.
func ComparedHook(l *zap.Logger) func(path string, old, cur any, equal bool) {
	return func(path string, old, cur any, equal bool) {
		if equal {
			return
		}
		l.Debug("value changed", zap.String("path", path), zap.Any("old", old), zap.Any("cur", cur))
	}
}
