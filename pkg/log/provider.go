package log

import (
	"context"
	"log/slog"
	"sync"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = &slogProvider{}
)

// SetProvider replaces the process-wide provider. Tests use it with a
// TestLoggerProvider to capture records.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// slogProvider resolves slog.Default() lazily so that SetupLogger may run
// after package-level loggers were requested.
type slogProvider struct {
	minLevel Level
	levelSet bool
}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{provider: p}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{provider: p, fields: []any{ComponentKey, name}}
}

func (p *slogProvider) SetLevel(level Level) {
	p.minLevel = level
	p.levelSet = true
}

type slogLogger struct {
	provider *slogProvider
	fields   []any
}

func (l *slogLogger) logger() *slog.Logger {
	lg := slog.Default()
	if len(l.fields) > 0 {
		lg = lg.With(l.fields...)
	}
	return lg
}

func (l *slogLogger) Debug(msg string, fields ...any) {
	l.log(LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...any) {
	l.log(LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(msg string, fields ...any) {
	l.log(LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	l.log(LevelError, msg, fields)
}

func (l *slogLogger) With(fields ...any) Logger {
	merged := make([]any, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &slogLogger{provider: l.provider, fields: merged}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	if l.provider.levelSet && level < l.provider.minLevel {
		return false
	}
	return slog.Default().Enabled(ctx, slog.Level(level))
}

func (l *slogLogger) log(level Level, msg string, fields []any) {
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.logger().Log(ctx, slog.Level(level), msg, fields...)
}
