package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, case-insensitively. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is a shorthand for F("error", err)
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Config holds logger configuration
type Config struct {
	Level      Level     // Minimum log level
	FilePath   string    // Path to log file, empty disables file output
	MaxSize    int64     // Max size in bytes before rotation
	MaxAge     int       // Max age in days
	MaxBackups int       // Max number of backup files
	Console    bool      // Mirror entries to stderr
	Output     io.Writer // Extra writer, used by tests and the dev server
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	logPath := ""
	if home != "" {
		logPath = filepath.Join(home, ".agrisense", "logs", "agrisense.log")
	}

	return Config{
		Level:      INFO,
		FilePath:   logPath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    false, // stays off so the dashboard owns the terminal
	}
}

// Logger writes levelled, key=value annotated entries to one or more writers.
type Logger struct {
	config Config
	fields []Field
	out    *output
}

// output is shared between a logger and the children created by WithFields.
type output struct {
	mu      sync.Mutex
	file    *os.File
	writers []io.Writer
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Init initializes the global logger. Calling it again replaces the previous logger.
func Init(config Config) error {
	l, err := New(config)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// SetDefault installs l as the global logger and closes the one it replaces.
func SetDefault(l *Logger) {
	globalMu.Lock()
	prev := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if prev != nil && prev != l {
		_ = prev.Close()
	}
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	l := &Logger{
		config: config,
		fields: []Field{},
		out:    &output{},
	}

	if config.FilePath != "" {
		logDir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.out.file = file

		l.out.mu.Lock()
		err = l.rotateIfNeeded()
		l.out.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	l.out.writers = l.writers()
	return l, nil
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	l, _ := New(Config{Level: ERROR + 1})
	return l
}

func (l *Logger) writers() []io.Writer {
	var ws []io.Writer
	if l.out.file != nil {
		ws = append(ws, l.out.file)
	}
	if l.config.Console {
		ws = append(ws, os.Stderr)
	}
	if l.config.Output != nil {
		ws = append(ws, l.config.Output)
	}
	return ws
}

// rotateIfNeeded checks size and age of the log file. Caller holds out.mu.
func (l *Logger) rotateIfNeeded() error {
	if l.out.file == nil {
		return nil
	}

	info, err := l.out.file.Stat()
	if err != nil {
		return err
	}

	if l.config.MaxSize > 0 && info.Size() >= l.config.MaxSize {
		return l.rotate()
	}

	if l.config.MaxAge > 0 && info.Size() > 0 &&
		time.Since(info.ModTime()) > time.Duration(l.config.MaxAge)*24*time.Hour {
		return l.rotate()
	}

	return nil
}

// rotate shifts backups and reopens the log file. Caller holds out.mu.
func (l *Logger) rotate() error {
	if l.out.file != nil {
		_ = l.out.file.Close()
	}

	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", l.config.FilePath, i)
		newPath := fmt.Sprintf("%s.%d", l.config.FilePath, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	if _, err := os.Stat(l.config.FilePath); err == nil {
		backupPath := fmt.Sprintf("%s.1", l.config.FilePath)
		if err := os.Rename(l.config.FilePath, backupPath); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	l.out.file = file
	l.out.writers = l.writers()
	return nil
}

// log writes a log entry
func (l *Logger) log(level Level, msg string, fields []Field) {
	if level < l.config.Level {
		return
	}

	_, file, line, ok := runtime.Caller(3)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s",
		time.Now().Format("2006-01-02 15:04:05.000"), level.String(), caller, msg)

	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	if len(all) > 0 {
		b.WriteString(" |")
		for _, f := range all {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	_ = l.rotateIfNeeded()
	for _, w := range l.out.writers {
		_, _ = io.WriteString(w, b.String())
	}
}

// WithFields creates a new logger with preset fields
func (l *Logger) WithFields(fields ...Field) *Logger {
	preset := make([]Field, 0, len(l.fields)+len(fields))
	preset = append(preset, l.fields...)
	preset = append(preset, fields...)
	return &Logger{config: l.config, fields: preset, out: l.out}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) { l.entry(DEBUG, msg, fields) }

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) { l.entry(INFO, msg, fields) }

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) { l.entry(WARN, msg, fields) }

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) { l.entry(ERROR, msg, fields) }

// entry keeps the caller depth identical for method and package-level calls.
func (l *Logger) entry(level Level, msg string, fields []Field) {
	l.log(level, msg, fields)
}

// Close closes the underlying log file, if any
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.file != nil {
		err := l.out.file.Close()
		l.out.file = nil
		l.out.writers = l.writers()
		return err
	}
	return nil
}

// Config returns the configuration the logger was built with
func (l *Logger) Config() Config {
	return l.config
}

// Global logger functions

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.entry(DEBUG, msg, fields)
	}
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.entry(INFO, msg, fields)
	}
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.entry(WARN, msg, fields)
	}
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.entry(ERROR, msg, fields)
	}
}

// WithFields returns a child of the global logger, or a discarding logger if none is set
func WithFields(fields ...Field) *Logger {
	if l := current(); l != nil {
		return l.WithFields(fields...)
	}
	return Discard().WithFields(fields...)
}

// Close closes the global logger
func Close() error {
	if l := current(); l != nil {
		return l.Close()
	}
	return nil
}

// GetConfig returns the current logger configuration
func GetConfig() Config {
	if l := current(); l != nil {
		return l.config
	}
	return DefaultConfig()
}
