package core

import (
	"go.uber.org/zap"
)

// Logger logs under stable upper-snake codes (e.g. OAUTH_CALLBACK_ERROR) so
// operators can alert on them. A nil *Logger discards everything.
type Logger struct {
	z *zap.Logger
}

func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z.Named("bantay")}
}

func (l *Logger) Error(code string, err error, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Error(code, append(fields, zap.String("code", code), zap.Error(err))...)
}

func (l *Logger) Warn(code string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Warn(code, append(fields, zap.String("code", code))...)
}

func (l *Logger) Debug(code string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Debug(code, append(fields, zap.String("code", code))...)
}

// Zap exposes the underlying logger for adapters that want to log directly.
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.z
}
