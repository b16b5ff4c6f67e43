package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/internal/types"
)

// Level represents a logging level
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

// ParseLevel maps a level name to a Level, defaulting to INFO
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
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

// Logger is a leveled logger with an optional component tag
type Logger struct {
	*log.Logger
	level     Level
	component string
}

// NewLogger creates a new logger instance writing to stdout
func NewLogger(level Level) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a new logger instance writing to w
func NewLoggerTo(w io.Writer, level Level) *Logger {
	return &Logger{
		Logger: log.New(w, "", 0),
		level:  level,
	}
}

// With returns a child logger that tags every line with the component name
func (l *Logger) With(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		level:     l.level,
		component: strings.ToUpper(component),
	}
}

// formatMessage formats a log message with timestamp, level, and caller info
func (l *Logger) formatMessage(level Level, msg string) string {
	_, file, line, ok := runtime.Caller(3)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}

	return fmt.Sprintf("[%s] %-5s %s: %s",
		timestamp,
		levelNames[level],
		caller,
		msg,
	)
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if l.level > level {
		return
	}
	l.Output(3, l.formatMessage(level, fmt.Sprintf(format, v...)))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(DEBUG, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(ERROR, format, v...)
}

// LogError logs an error, expanding AppError context when present
func (l *Logger) LogError(err error) {
	if err == nil {
		return
	}

	var appErr *types.AppError
	if !types.As(err, &appErr) {
		l.logf(ERROR, "Unexpected error: %v", err)
		return
	}

	context := []string{
		fmt.Sprintf("Code: %s", appErr.Code),
		fmt.Sprintf("Kind: %s", appErr.Kind()),
		fmt.Sprintf("Message: %s", appErr.Message),
	}
	if appErr.Reason != "" {
		context = append(context, fmt.Sprintf("Reason: %s", appErr.Reason))
	}
	if appErr.Err != nil {
		context = append(context, fmt.Sprintf("Cause: %v", appErr.Err))
	}

	// Client-correctable errors are not operational failures
	level := ERROR
	switch appErr.Kind() {
	case types.KindValidation, types.KindConflict, types.KindNotFound, types.KindAuthorization:
		level = WARN
	}
	l.logf(level, "Request failed:\n\t%s", strings.Join(context, "\n\t"))
}

// Default logger instance
var Default = NewLogger(INFO)
