// Package obslog wraps zap with the query-scoped fields the core's
// components thread through a request: trace id, query id, stage. It is
// passed explicitly through constructors, never held as a package
// global — the core owns no process-wide state (spec §9).
package obslog

import "go.uber.org/zap"

// Logger is a thin facade over *zap.Logger. Kept as a named type (rather
// than a bare alias) so call sites read "obslog.Logger" the way the
// teacher's constructors take a *zap.Logger by explicit injection.
type Logger struct {
	z *zap.Logger
}

// New wraps an existing zap logger. Pass zap.NewNop() in tests.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// WithTrace returns a child logger tagged with the query trace id.
func (l *Logger) WithTrace(traceID string) *Logger {
	return &Logger{z: l.z.With(zap.String("trace_id", traceID))}
}

// WithStage returns a child logger tagged with the active pipeline stage.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{z: l.z.With(zap.String("stage", stage))}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)   { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)   { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)  { l.z.Error(msg, fields...) }

// Sync flushes buffered log entries; call on shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }
