package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel int

// Severities in increasing order. FATAL is reserved for failures the
// process cannot continue past.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the level name in uppercase.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// LevelFromString parses a level name, ignoring case and surrounding
// whitespace. "WARNING" is accepted for WARN. Unrecognised input maps
// to INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry is one log event as handed to a formatter.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogFormatter renders entries for a terminal or a log file.
type LogFormatter interface {
	Format(entry LogEntry) string
}

// defaultTimeLayout is the timestamp layout of the text formatters.
const defaultTimeLayout = "2006-01-02 15:04:05"

// textLine assembles "[timestamp] LEVEL message key=value ...".
// levelTag carries the pre-rendered level column, which lets
// ColorFormatter substitute a colored one. Fields print in key order so
// output is stable.
func textLine(entry LogEntry, layout, levelTag string) string {
	if layout == "" {
		layout = defaultTimeLayout
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", entry.Timestamp.Format(layout), levelTag, entry.Message)
	for _, k := range sortedKeys(entry.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

// TextFormatter renders entries as plain text lines. The level column
// is padded to five characters so messages align.
type TextFormatter struct {
	// TimeFormat overrides the timestamp layout. Empty means
	// defaultTimeLayout.
	TimeFormat string
}

// Format renders one entry as a plain text line.
func (f *TextFormatter) Format(entry LogEntry) string {
	return textLine(entry, f.TimeFormat, fmt.Sprintf("%-5s", entry.Level))
}

// JSONFormatter renders entries as one JSON object per line under the
// "time", "level", and "msg" keys, with fields merged in at the top
// level. A field named like a reserved key loses to the reserved key.
type JSONFormatter struct {
	// TimeFormat overrides the timestamp layout. Empty means
	// time.RFC3339.
	TimeFormat string
}

// Format renders one entry as a JSON object.
func (f *JSONFormatter) Format(entry LogEntry) string {
	layout := f.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	obj := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		obj[k] = v
	}
	obj["time"] = entry.Timestamp.Format(layout)
	obj["level"] = entry.Level.String()
	obj["msg"] = entry.Message

	data, err := json.Marshal(obj)
	if err != nil {
		// A field value that cannot marshal must not take logging down.
		return fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q,"error":"marshal failed"}`,
			entry.Timestamp.Format(layout), entry.Level.String(), entry.Message)
	}
	return string(data)
}

// ANSI escapes for the colored level column.
const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[37m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiBold   = "\033[1m"
)

// colorForLevel picks the escape sequence for a level. DEBUG is gray,
// INFO green, WARN yellow, ERROR red, and FATAL bold red.
func colorForLevel(level LogLevel) string {
	switch level {
	case DEBUG:
		return ansiGray
	case INFO:
		return ansiGreen
	case WARN:
		return ansiYellow
	case ERROR:
		return ansiRed
	case FATAL:
		return ansiBold + ansiRed
	default:
		return ansiReset
	}
}

// ColorFormatter renders the same line as TextFormatter with the level
// column colored by severity.
type ColorFormatter struct {
	// TimeFormat overrides the timestamp layout. Empty means
	// defaultTimeLayout.
	TimeFormat string
}

// Format renders one entry with an ANSI-colored level column.
func (f *ColorFormatter) Format(entry LogEntry) string {
	tag := colorForLevel(entry.Level) + fmt.Sprintf("%-5s", entry.Level) + ansiReset
	return textLine(entry, f.TimeFormat, tag)
}

// sortedKeys returns the field names in ascending order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
