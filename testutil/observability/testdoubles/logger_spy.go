package testdoubles

import (
	"sync"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// LogEntry is one captured log call: its level, message, and key-value args.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// LoggerSpy implements entitycache.Logger and captures every call for assertions.
type LoggerSpy struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLoggerSpy creates an empty LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug captures a debug-level log call.
func (l *LoggerSpy) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Info captures an info-level log call.
func (l *LoggerSpy) Info(msg string, args ...any) { l.record("info", msg, args) }

// Warn captures a warn-level log call.
func (l *LoggerSpy) Warn(msg string, args ...any) { l.record("warn", msg, args) }

// Error captures an error-level log call.
func (l *LoggerSpy) Error(msg string, args ...any) { l.record("error", msg, args) }

// Entries returns a copy of all captured log entries.
func (l *LoggerSpy) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LogEntry, len(l.entries))
	copy(entries, l.entries)

	return entries
}

// CountByMessage returns how many captured entries carry the given message.
func (l *LoggerSpy) CountByMessage(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, entry := range l.entries {
		if entry.Message == msg {
			count++
		}
	}

	return count
}

// Reset clears all captured entries.
func (l *LoggerSpy) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
}

func (l *LoggerSpy) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

var _ entitycache.Logger = (*LoggerSpy)(nil)
