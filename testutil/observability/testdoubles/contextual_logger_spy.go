package testdoubles

import (
	"context"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// ContextualLoggerSpy implements entitycache.ContextualLogger by delegating to a
// LoggerSpy, discarding the context. Use it to assert on context-aware log calls.
type ContextualLoggerSpy struct {
	*LoggerSpy
}

// NewContextualLoggerSpy creates an empty ContextualLoggerSpy.
func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{LoggerSpy: NewLoggerSpy()}
}

// DebugContext captures a debug-level log call.
func (l *ContextualLoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	l.Debug(msg, args...)
}

// InfoContext captures an info-level log call.
func (l *ContextualLoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	l.Info(msg, args...)
}

// WarnContext captures a warn-level log call.
func (l *ContextualLoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	l.Warn(msg, args...)
}

// ErrorContext captures an error-level log call.
func (l *ContextualLoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	l.Error(msg, args...)
}

var _ entitycache.ContextualLogger = (*ContextualLoggerSpy)(nil)
