// Package log provides the default slog-backed logger provider.
//
// This file contains the package-level logger accessors used throughout
// otulearn. Estimators and pipeline stages obtain loggers through
// GetLogger/GetLoggerWithName; tests swap the provider with
// SetLoggerProvider to capture output.

package log

import (
	"context"
	"log/slog"
	"sync"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = &slogProvider{level: LevelInfo}
)

// SetLoggerProvider installs a custom LoggerProvider.
// Passing nil restores the default slog-backed provider.
func SetLoggerProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if p == nil {
		provider = &slogProvider{level: LevelInfo}
		return
	}
	provider = p
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a named logger from the current provider.
// The name identifies the component emitting the logs, e.g.
// "ensemble.random_forest" or "supervised.pipeline".
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// slogProvider is the default LoggerProvider backed by the process-wide
// slog default logger (configured via SetupLogger).
type slogProvider struct {
	mu    sync.RWMutex
	level Level
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{l: slog.Default(), min: p.minLevel()}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: slog.Default().With(ComponentKey, name), min: p.minLevel()}
}

// SetLevel implements LoggerProvider.SetLevel.
// The new level applies to loggers obtained after the call.
func (p *slogProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

func (p *slogProvider) minLevel() Level {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// slogLogger adapts *slog.Logger to the Logger interface with a
// provider-level minimum.
type slogLogger struct {
	l   *slog.Logger
	min Level
}

// Debug implements Logger.Debug.
func (s *slogLogger) Debug(msg string, fields ...any) {
	if s.min > LevelDebug {
		return
	}
	s.l.Debug(msg, fields...)
}

// Info implements Logger.Info.
func (s *slogLogger) Info(msg string, fields ...any) {
	if s.min > LevelInfo {
		return
	}
	s.l.Info(msg, fields...)
}

// Warn implements Logger.Warn.
func (s *slogLogger) Warn(msg string, fields ...any) {
	if s.min > LevelWarn {
		return
	}
	s.l.Warn(msg, fields...)
}

// Error implements Logger.Error.
// When the first field is a bare error it is converted to the standard
// error attribute so ErrFmtHandler can extract its stacktrace.
func (s *slogLogger) Error(msg string, fields ...any) {
	if s.min > LevelError {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			converted := make([]any, 0, len(fields)+1)
			converted = append(converted, ErrAttr(err))
			converted = append(converted, fields[1:]...)
			s.l.Error(msg, converted...)
			return
		}
	}
	s.l.Error(msg, fields...)
}

// With implements Logger.With.
func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...), min: s.min}
}

// Enabled implements Logger.Enabled.
func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	if s.min > level {
		return false
	}
	return s.l.Enabled(ctx, slog.Level(level))
}
