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

// Options configures the global logger.
type Options struct {
	Enabled bool
	Level   string
	File    string
	Console bool
}

// Logger is a leveled line logger.
type Logger struct {
	mu      sync.Mutex
	level   Level
	logger  *log.Logger
	closer  io.Closer
	prefix  string
	enabled bool
}

var globalLogger *Logger

// Init initializes the global logger from options.
func Init(opts Options) error {
	if !opts.Enabled {
		globalLogger = &Logger{enabled: false}
		return nil
	}

	var writers []io.Writer
	var closer io.Closer

	if opts.File != "" {
		dir := filepath.Dir(opts.File)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if opts.Console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	globalLogger = &Logger{
		level:   ParseLevel(opts.Level),
		logger:  log.New(io.MultiWriter(writers...), "", 0),
		closer:  closer,
		enabled: true,
	}
	return nil
}

// SetOutput routes the global logger to w at the given level.
func SetOutput(w io.Writer, level Level) {
	globalLogger = &Logger{
		level:   level,
		logger:  log.New(w, "", 0),
		enabled: true,
	}
}

// SetPrefix tags every following line with prefix, e.g. a build run ID.
func SetPrefix(prefix string) {
	if globalLogger == nil {
		return
	}
	globalLogger.mu.Lock()
	globalLogger.prefix = prefix
	globalLogger.mu.Unlock()
}

// Close releases the log file, if any.
func Close() error {
	if globalLogger == nil || globalLogger.closer == nil {
		return nil
	}
	return globalLogger.closer.Close()
}

// ParseLevel maps a config string to a Level. Unknown values fall back to Info.
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

func logf(level Level, format string, args ...interface{}) {
	l := globalLogger
	if l == nil || !l.enabled || l.level > level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.logger.Printf("[%s] [%s] [%s] %s", ts, level, l.prefix, msg)
		return
	}
	l.logger.Printf("[%s] [%s] %s", ts, level, msg)
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
