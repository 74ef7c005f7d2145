package log

import (
	"context"
	"fmt"
	"sync"
)

// Record is one captured log call. Field values keep their Go types.
type Record struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// recorder is shared by a TestLogger and every logger derived with With.
// Partition files are read concurrently, so it is guarded by a mutex.
type recorder struct {
	mu      sync.Mutex
	level   Level
	records []Record
}

// TestLogger captures records in memory so that tests can assert on
// messages and fields.
type TestLogger struct {
	rec    *recorder
	fields []any
}

// NewTestLogger returns a logger that keeps records at level or above.
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{rec: &recorder{level: level}}
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }

func (t *TestLogger) Info(msg string, fields ...any) { t.log(LevelInfo, msg, fields) }

func (t *TestLogger) Warn(msg string, fields ...any) { t.log(LevelWarn, msg, fields) }

func (t *TestLogger) Error(msg string, fields ...any) { t.log(LevelError, msg, fields) }

func (t *TestLogger) With(fields ...any) Logger {
	merged := make([]any, 0, len(t.fields)+len(fields))
	merged = append(merged, t.fields...)
	merged = append(merged, fields...)
	return &TestLogger{rec: t.rec, fields: merged}
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return level >= t.rec.level
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	if !t.Enabled(context.Background(), level) {
		return
	}
	r := Record{Level: level, Message: msg, Fields: map[string]any{}}
	addFields(r.Fields, t.fields)
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			r.Fields[ErrAttrKey] = err.Error()
			fields = fields[1:]
		}
	}
	addFields(r.Fields, fields)

	t.rec.mu.Lock()
	t.rec.records = append(t.rec.records, r)
	t.rec.mu.Unlock()
}

// addFields copies key/value pairs into dst; errors are stored as their text.
func addFields(dst map[string]any, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if err, ok := kv[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = kv[i+1]
	}
}

// Records returns a copy of everything captured so far.
func (t *TestLogger) Records() []Record {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return append([]Record(nil), t.rec.records...)
}

// Find returns the first record with message msg.
func (t *TestLogger) Find(msg string) (Record, bool) {
	for _, r := range t.Records() {
		if r.Message == msg {
			return r, true
		}
	}
	return Record{}, false
}

// FindAll returns every record with message msg, oldest first.
func (t *TestLogger) FindAll(msg string) []Record {
	var out []Record
	for _, r := range t.Records() {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

// Clear drops the captured records.
func (t *TestLogger) Clear() {
	t.rec.mu.Lock()
	t.rec.records = nil
	t.rec.mu.Unlock()
}

// TestLoggerProvider hands out loggers that all record into one TestLogger.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider returns a provider capturing records at level or above.
func NewTestLoggerProvider(level Level) *TestLoggerProvider {
	return &TestLoggerProvider{logger: NewTestLogger(level)}
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.logger }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.rec.mu.Lock()
	p.logger.rec.level = level
	p.logger.rec.mu.Unlock()
}

// Logger returns the capturing logger for assertions.
func (p *TestLoggerProvider) Logger() *TestLogger { return p.logger }

// CaptureLogs installs a TestLoggerProvider as the process-wide provider and
// returns it with a function restoring the previous one. Loggers obtained
// before the call keep writing to the old provider.
//
//	logs, restore := log.CaptureLogs(log.LevelDebug)
//	t.Cleanup(restore)
func CaptureLogs(level Level) (*TestLogger, func()) {
	p := NewTestLoggerProvider(level)
	providerMu.Lock()
	prev := provider
	provider = p
	providerMu.Unlock()
	return p.logger, func() { SetProvider(prev) }
}
