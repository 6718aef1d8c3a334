package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/itconnect/internal/config"
)

// NewLogger creates a JSON zap.Logger at the configured level. Unknown levels
// fall back to info.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	zapCfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			LevelKey:      "level",
			TimeKey:       "ts",
			NameKey:       "logger",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			EncodeTime:    zapcore.ISO8601TimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

func parseLevel(raw string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(strings.TrimSpace(raw))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
