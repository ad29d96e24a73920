package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// noopFunc is a reusable no-op function to avoid allocations
var noopFunc = func() {}

// Trace returns a function that logs operation duration when called.
// Returns a no-op function when TRACE level is disabled.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	l := current()
	if !l.enabled(LogLevelTrace) {
		return noopFunc
	}
	start := time.Now()
	return func() {
		l.zl.Trace().Dur("elapsed", time.Since(start)).Msg(name)
	}
}

// MaxLogLines defines the maximum number of lines to keep in the log file
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelTrace:
		return zerolog.TraceLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LimitedLogger writes leveled log lines to a file and keeps the file
// trimmed to the last MaxLogLines lines.
type LimitedLogger struct {
	file      *os.File
	lineCount int
	level     LogLevel
	zl        zerolog.Logger
	mutex     sync.Mutex
}

var (
	globalMu     sync.RWMutex
	globalLogger *LimitedLogger
)

// defaultLogger is used before the global logger is initialized
var defaultLogger = newStderrLogger()

func newStderrLogger() *LimitedLogger {
	ll := &LimitedLogger{level: LogLevelInfo}
	ll.zl = newZerolog(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}, LogLevelInfo)
	return ll
}

func newZerolog(w io.Writer, level LogLevel) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(level.zerolog())
}

// NewLimitedLogger creates a LimitedLogger on file and installs it as the
// global logger.
func NewLimitedLogger(file *os.File, level LogLevel) *LimitedLogger {
	ll := &LimitedLogger{
		file:  file,
		level: level,
	}
	ll.zl = newZerolog(zerolog.ConsoleWriter{Out: ll, NoColor: true, TimeFormat: "2006/01/02 15:04:05"}, level)

	ll.countExistingLines()

	globalMu.Lock()
	globalLogger = ll
	globalMu.Unlock()
	return ll
}

func current() *LimitedLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// SetLevel sets the logging level
func (ll *LimitedLogger) SetLevel(level LogLevel) {
	ll.mutex.Lock()
	ll.level = level
	ll.mutex.Unlock()
	ll.zl = ll.zl.Level(level.zerolog())
}

// SetGlobalLevel sets the logging level on the global logger
func SetGlobalLevel(level LogLevel) {
	current().SetLevel(level)
}

func (ll *LimitedLogger) enabled(level LogLevel) bool {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()
	return level >= ll.level
}

func (ll *LimitedLogger) event(level LogLevel) *zerolog.Event {
	switch level {
	case LogLevelTrace:
		return ll.zl.Trace()
	case LogLevelDebug:
		return ll.zl.Debug()
	case LogLevelWarn:
		return ll.zl.Warn()
	case LogLevelError:
		return ll.zl.Error()
	default:
		return ll.zl.Info()
	}
}

func (ll *LimitedLogger) logWithLevel(level LogLevel, format string, v ...any) {
	if !ll.enabled(level) {
		return
	}
	ll.event(level).Msg(fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func (ll *LimitedLogger) Debug(format string, v ...any) {
	ll.logWithLevel(LogLevelDebug, format, v...)
}

// Info logs an info message
func (ll *LimitedLogger) Info(format string, v ...any) {
	ll.logWithLevel(LogLevelInfo, format, v...)
}

// Warn logs a warning message
func (ll *LimitedLogger) Warn(format string, v ...any) {
	ll.logWithLevel(LogLevelWarn, format, v...)
}

// Error logs an error message
func (ll *LimitedLogger) Error(format string, v ...any) {
	ll.logWithLevel(LogLevelError, format, v...)
}

// Fatal logs an error message and exits with code 1
func (ll *LimitedLogger) Fatal(format string, v ...any) {
	ll.logWithLevel(LogLevelError, format, v...)
	os.Exit(1)
}

func Debug(format string, v ...any) { current().Debug(format, v...) }

func Info(format string, v ...any) { current().Info(format, v...) }

func Warn(format string, v ...any) { current().Warn(format, v...) }

func Error(format string, v ...any) { current().Error(format, v...) }

func Fatal(format string, v ...any) { current().Fatal(format, v...) }

// countExistingLines counts the number of lines in the current log file
func (ll *LimitedLogger) countExistingLines() {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	ll.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(ll.file)

	count := 0
	for scanner.Scan() {
		count++
	}
	ll.lineCount = count

	ll.file.Seek(0, io.SeekEnd)
}

// Write implements io.Writer. Used as the zerolog sink and as the target
// of the standard library logger.
func (ll *LimitedLogger) Write(p []byte) (n int, err error) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	if ll.file == nil {
		return os.Stderr.Write(p)
	}

	n, err = ll.file.Write(p)
	if err != nil {
		return n, err
	}

	ll.lineCount += strings.Count(string(p), "\n")
	if ll.lineCount > MaxLogLines {
		ll.rotateLogFile()
	}

	return n, err
}

// rotateLogFile trims the log file to keep only the last MaxLogLines lines
func (ll *LimitedLogger) rotateLogFile() {
	ll.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(ll.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) > MaxLogLines {
		lines = lines[len(lines)-MaxLogLines:]
	}

	ll.file.Truncate(0)
	ll.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(ll.file)
	for _, line := range lines {
		w.WriteString(line + "\n")
	}
	w.Flush()

	ll.lineCount = len(lines)
}

// Close closes the underlying file and restores the stderr logger
func (ll *LimitedLogger) Close() error {
	globalMu.Lock()
	if globalLogger == ll {
		globalLogger = nil
	}
	globalMu.Unlock()
	if ll.file == nil {
		return nil
	}
	return ll.file.Close()
}
