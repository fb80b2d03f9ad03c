package log

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// FormatHandler adapts a LogFormatter into a slog.Handler, so the text
// and color formatters can back the same Logger API as the JSON
// handler. Attributes added with WithAttrs accumulate; group names
// qualify attribute keys with a dotted prefix.
type FormatHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	min    slog.Level
	f      LogFormatter
	attrs  []slog.Attr
	prefix string
}

var _ slog.Handler = (*FormatHandler)(nil)

// NewFormatHandler creates a handler writing formatted lines to w,
// dropping records below level.
func NewFormatHandler(w io.Writer, level LogLevel, f LogFormatter) *FormatHandler {
	return &FormatHandler{mu: &sync.Mutex{}, w: w, min: level.slogLevel(), f: f}
}

// Enabled reports whether a record at the given level would be emitted.
func (h *FormatHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

// Handle formats one record and writes it as a single line.
func (h *FormatHandler) Handle(_ context.Context, rec slog.Record) error {
	entry := LogEntry{
		Timestamp: rec.Time,
		Level:     levelFromSlog(rec.Level),
		Message:   rec.Message,
	}
	fields := make(map[string]interface{}, len(h.attrs)+rec.NumAttrs())
	for _, a := range h.attrs {
		if a.Key == "" {
			continue
		}
		fields[a.Key] = a.Value.Resolve().Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key != "" {
			fields[h.prefix+a.Key] = a.Value.Resolve().Any()
		}
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, h.f.Format(entry)+"\n")
	return err
}

// WithAttrs returns a handler that includes attrs in every record.
// Keys are qualified with the group prefix in effect when added.
func (h *FormatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &clone
}

// WithGroup returns a handler that qualifies subsequent attribute keys
// with the group name.
func (h *FormatHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// slogLevel maps a LogLevel onto the slog scale. FATAL sits above
// slog.LevelError.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	case FATAL:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// levelFromSlog buckets a slog level into the nearest LogLevel.
func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	case l < slog.LevelError+4:
		return ERROR
	default:
		return FATAL
	}
}
