package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campusplan/timetable-engine/pkg/config"
)

func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

// WithOperation returns a child logger tagged with the engine operation
// name (LogOutcome adds the latency), mirroring the per-request
// logging the teacher attaches via gin middleware — here invoked
// directly by internal/engine around each entry point.
func WithOperation(l *zap.Logger, operation string) *zap.Logger {
	return l.With(zap.String("operation", operation))
}

// LogOutcome records one completed engine call the way the teacher's
// GinMiddleware records one completed HTTP request.
func LogOutcome(l *zap.Logger, operation string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.Error("engine_call", fields...)
		return
	}
	l.Info("engine_call", fields...)
}
