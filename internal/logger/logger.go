package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Config controls where and how much is logged.
type Config struct {
	Enabled bool
	Level   string
	File    string
	Console bool
}

// Logger is a leveled wrapper around the standard logger.
type Logger struct {
	level   Level
	logger  *log.Logger
	enabled bool
	closer  io.Closer
}

var (
	mu           sync.RWMutex
	globalLogger *Logger
)

// Init installs the global logger. Stage code logs through the package
// functions, so Init must run before the first stage starts.
func Init(cfg Config) error {
	if !cfg.Enabled {
		swap(&Logger{enabled: false})
		return nil
	}

	var writers []io.Writer
	var closer io.Closer

	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	// Progress goes to stderr so stdout stays clean for piping artifacts.
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	swap(&Logger{
		level:   ParseLevel(cfg.Level),
		logger:  log.New(io.MultiWriter(writers...), "", 0),
		enabled: true,
		closer:  closer,
	})
	return nil
}

// SetOutput routes all log lines to w at the given level.
func SetOutput(w io.Writer, level Level) {
	swap(&Logger{
		level:   level,
		logger:  log.New(w, "", 0),
		enabled: true,
	})
}

// Close releases the log file, if one was opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil || globalLogger.closer == nil {
		return nil
	}
	err := globalLogger.closer.Close()
	globalLogger.closer = nil
	return err
}

func swap(l *Logger) {
	mu.Lock()
	old := globalLogger
	globalLogger = l
	mu.Unlock()
	if old != nil && old.closer != nil {
		old.closer.Close()
	}
}

// ParseLevel maps a level name to a Level. Unknown names map to Info.
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

func formatMessage(level Level, format string, args ...interface{}) string {
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	return fmt.Sprintf("[%s] [%s] %s", ts, level, msg)
}

func logf(level Level, format string, args ...interface{}) {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l == nil || !l.enabled || l.level > level {
		return
	}
	l.logger.Println(formatMessage(level, format, args...))
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	logf(Debug, format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	logf(Info, format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	logf(Warn, format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	logf(Error, format, args...)
}
