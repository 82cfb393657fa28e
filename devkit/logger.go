package devkit

import (
	"context"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
)

type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// CaptureLogger records every log call, including fields attached through
// WithFields.
type CaptureLogger struct {
	mu       *sync.Mutex
	records  *[]LogEntry
	defaults map[string]any
}

func NewCaptureLogger() *CaptureLogger {
	records := []LogEntry{}
	return &CaptureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *CaptureLogger) WithFields(fields map[string]any) glog.Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &CaptureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *CaptureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *CaptureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *CaptureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *CaptureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *CaptureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *CaptureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *CaptureLogger) WithContext(context.Context) glog.Logger {
	return &CaptureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *CaptureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, LogEntry{Level: level, Msg: msg, Fields: fields})
}

func (l *CaptureLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]LogEntry, len(items))
	copy(out, items)
	return out
}

// Find returns the first entry at level with msg.
func (l *CaptureLogger) Find(level string, msg string) (LogEntry, bool) {
	for _, entry := range l.Entries() {
		if entry.Level == level && entry.Msg == msg {
			return entry, true
		}
	}
	return LogEntry{}, false
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

var (
	_ glog.Logger       = (*CaptureLogger)(nil)
	_ glog.FieldsLogger = (*CaptureLogger)(nil)
)
