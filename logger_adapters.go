// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.Logger to the Logger interface
//
// Key-value pairs are passed to the sugared logger, so any value type zap
// can encode is accepted.
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	client, _ := eos.NewClient("switch1",
//	    eos.WithLogger(eos.NewZapLogger(zl)))
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps a zap logger; a nil logger yields a no-op zap logger
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

// Debug logs at zap debug level
func (z *ZapLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at zap info level
func (z *ZapLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at zap warn level
func (z *ZapLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at zap error level
func (z *ZapLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Errorw(msg, keysAndValues...)
}

// LogrusLogger adapts a logrus.FieldLogger to the Logger interface
type LogrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger wraps a logrus logger or entry; nil uses the standard logger
func NewLogrusLogger(l logrus.FieldLogger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: l}
}

// Debug logs at logrus debug level
func (l *LogrusLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	l.with(ctx, keysAndValues).Debug(msg)
}

// Info logs at logrus info level
func (l *LogrusLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	l.with(ctx, keysAndValues).Info(msg)
}

// Warn logs at logrus warn level
func (l *LogrusLogger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	l.with(ctx, keysAndValues).Warn(msg)
}

// Error logs at logrus error level
func (l *LogrusLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	l.with(ctx, keysAndValues).Error(msg)
}

// with attaches the fields and the operation context, which logrus hooks
// read from Entry.Context
func (l *LogrusLogger) with(ctx context.Context, keysAndValues []any) *logrus.Entry {
	entry := l.entry.WithFields(logrusFields(keysAndValues))
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

// logrusFields converts alternating keys and values into logrus fields.
// A trailing key without a value is recorded as "<MISSING>".
func logrusFields(keysAndValues []any) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "<MISSING>"
		}
	}
	return fields
}
