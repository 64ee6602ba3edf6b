// Package log implements a small leveled logger. Log lines go to
// stderr and, optionally, to a log file.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

// The level of visibility of the log output. ERROR is the lowest level
// and is always printed; DEBUG is the highest.
const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
)

var levelNames = map[LogLevel]string{
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
}

// LevelFromString parses a level name. Unknown names map to INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ERROR
	case "warn", "warning":
		return WARN
	case "info":
		return INFO
	case "debug":
		return DEBUG
	default:
		return INFO
	}
}

// Logger writes timestamped, leveled log lines. It is safe for use
// from multiple goroutines.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	out   io.Writer
	file  *os.File
}

// New creates a Logger writing to the given writer. Mostly useful for
// tests; daemons want NewLogger.
func New(out io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, out: out}
}

// NewLogger creates a Logger that writes to stderr and, if filePath is
// not blank, to the given file as well.
func NewLogger(level LogLevel, filePath string) *Logger {
	l := &Logger{level: level, out: os.Stderr}
	if filePath == "" {
		return l
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't open log file: %s\n", err)
		return l
	}
	l.file = file
	l.out = io.MultiWriter(os.Stderr, file)
	return l
}

// SetLevel sets the log visibility level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
		l.out = os.Stderr
	}
}

func (l *Logger) write(level LogLevel, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.out, "%s: [%s] %s\n", ts, levelNames[level], fmt.Sprintf(format, args...))
}

// Error prints out an error message.
func (l *Logger) Error(format string, args ...any) {
	l.write(ERROR, format, args...)
}

// Warn prints out a warning message if the level allows it.
func (l *Logger) Warn(format string, args ...any) {
	l.write(WARN, format, args...)
}

// Info prints out an informational message if the level allows it.
func (l *Logger) Info(format string, args ...any) {
	l.write(INFO, format, args...)
}

// Debug prints out a debug message if the level allows it.
func (l *Logger) Debug(format string, args ...any) {
	l.write(DEBUG, format, args...)
}
