// Package observability provides structured logging and metrics collection
// for the coordination pipeline.
//
// Logger wraps go.uber.org/zap with coordinator-specific context fields.
// Metrics exposes Prometheus collectors for the audit trail, escalation
// ladder, approval workflow, monitor scheduler, and self-coding pipeline.
package observability

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger with a persistent "component" field.
type Logger struct {
	mu        sync.RWMutex
	inner     *zap.Logger
	component string
}

// NewLogger creates a structured JSON logger for a given component.
// Output defaults to os.Stderr if w is nil.
func NewLogger(component string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{
		inner:     zap.New(core).With(zap.String("component", component)),
		component: component,
	}
}

// NewLoggerWithCore creates a Logger from a caller-supplied zapcore.Core,
// useful for tests that want to inspect zaptest observed logs.
func NewLoggerWithCore(component string, core zapcore.Core) *Logger {
	return &Logger{
		inner:     zap.New(core).With(zap.String("component", component)),
		component: component,
	}
}

// With returns a new Logger with an additional persistent field.
func (l *Logger) With(key string, value any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		inner:     l.inner.With(zap.Any(key, value)),
		component: l.component,
	}
}

func toZapFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}

// Debug logs at DEBUG level with alternating key/value args.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, toZapFields(args)...) }

// Info logs at INFO level with alternating key/value args.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, toZapFields(args)...) }

// Warn logs at WARN level with alternating key/value args.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, toZapFields(args)...) }

// Error logs at ERROR level with alternating key/value args.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, toZapFields(args)...) }

// Pipeline logs a self-coding pipeline stage event.
func (l *Logger) Pipeline(stage int, total int, msg string, args ...any) {
	fields := append([]zap.Field{zap.Int("stage", stage), zap.Int("total_stages", total)}, toZapFields(args)...)
	l.inner.Info(msg, fields...)
}

// Decision logs a matrix decision event.
func (l *Logger) Decision(risk, urgency, action string, confidence float64, args ...any) {
	fields := append([]zap.Field{
		zap.String("risk", risk),
		zap.String("urgency", urgency),
		zap.String("action", action),
		zap.Float64("confidence", confidence),
	}, toZapFields(args)...)
	l.inner.Info("decision", fields...)
}

// ComponentName returns the component name associated with this logger.
func (l *Logger) ComponentName() string {
	return l.component
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.inner.Sync()
}
