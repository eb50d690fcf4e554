// Package zaplog adapts a zap logger to the core.Logger interface.
package zaplog

import (
	"github.com/chronon-io/chronon/core"
	"go.uber.org/zap"
)

// Logger forwards core.Logger calls to a zap.Logger.
type Logger struct {
	base *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps an existing zap logger. A nil logger falls back to zap.NewNop.
func New(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base}
}

// NewProduction builds a Logger backed by zap's production configuration.
func NewProduction() (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{base: base}, nil
}

// NewDevelopment builds a Logger backed by zap's development configuration.
func NewDevelopment() (*Logger, error) {
	base, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{base: base}, nil
}

func (l *Logger) Debug(msg string, fields ...core.Field) {
	l.base.Debug(msg, convertFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...core.Field) {
	l.base.Info(msg, convertFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...core.Field) {
	l.base.Warn(msg, convertFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...core.Field) {
	l.base.Error(msg, convertFields(fields)...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

func convertFields(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	converted := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		converted = append(converted, zap.Any(field.Key, field.Value))
	}
	return converted
}
