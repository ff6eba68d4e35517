// Package logger writes one JSON object per line with key/value fields.
// Values under keys that look like personal data are redacted before they
// leave the process.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config value such as "debug" or "WARN" to a Level.
// Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.Mutex
	level     Level
	redactPII bool
	out       io.Writer
}

// New returns a logger writing to out.
func New(out io.Writer, level Level) *Logger {
	return &Logger{level: level, redactPII: true, out: out}
}

var defaultLogger = New(os.Stderr, INFO)

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.Lock()
	defaultLogger.level = l
	defaultLogger.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// SetOutput redirects the default logger and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	prev := defaultLogger.out
	defaultLogger.out = w
	return prev
}

func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }
func Info(msg string, fields ...interface{})  { defaultLogger.log(INFO, msg, fields...) }
func Warn(msg string, fields ...interface{})  { defaultLogger.log(WARN, msg, fields...) }
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		var val interface{} = fields[i+1]
		switch v := val.(type) {
		case error:
			val = v.Error()
		case fmt.Stringer:
			val = v.String()
		}
		if s, ok := val.(string); ok && l.redactPII {
			val = redactPIIValue(key, s)
		}
		entry[key] = val
	}
	if len(fields)%2 == 1 {
		entry["!BADKEY"] = fmt.Sprintf("%v", fields[len(fields)-1])
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"level": levelNames[level], "msg": msg, "log_error": err.Error()})
	}
	fmt.Fprintln(l.out, string(data))
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") {
		return RedactEmail(val)
	}
	if strings.Contains(key, "external_id") || strings.Contains(key, "fan_handle") {
		return RedactID(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
