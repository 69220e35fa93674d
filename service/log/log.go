package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var global *zap.Logger

func init() {
	global = newLogger(zapcore.InfoLevel)
}

func newLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// SetLevel replaces the global logger with one logging at the given level.
// Typically called once from main after flags are parsed.
func SetLevel(level zapcore.Level) {
	global = newLogger(level)
}

// Logger returns the logger attached to ctx, or the global logger.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return global
}

// With returns a context whose logger carries the given key/value.
func With(ctx context.Context, key string, value interface{}) context.Context {
	return context.WithValue(ctx, ctxKey{}, Logger(ctx).With(zap.Any(key, value)))
}

// WithFields returns a context whose logger carries the given fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, Logger(ctx).With(fields...))
}

// Fatal logs the message on the global logger and exits.
func Fatal(msg string, fields ...zap.Field) {
	global.Fatal(msg, fields...)
}

// Fatalf logs the formatted message on the global logger and exits.
func Fatalf(format string, args ...interface{}) {
	global.Sugar().Fatalf(format, args...)
}
