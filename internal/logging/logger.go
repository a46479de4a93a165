package logging

// Structured logging for gpdplot

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLogLevel maps a config/flag string to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q (silent, error, info, verbose, debug)", s)
}

// Logger provides structured logging
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	format   string
	logEvery int
	counter  int
	console  bool
	session  string
	file     *os.File
	fileLog  *log.Logger
	stdout   *log.Logger
	stderr   *log.Logger
}

// NewLogger creates a new text logger that writes every message
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text", 1)
}

// NewLoggerWithOptions creates a logger with an output format ("text" or "json")
// and console sampling (only every logEvery-th message reaches the console when
// no file is configured).
func NewLoggerWithOptions(level LogLevel, logFile, format string, logEvery int) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if logEvery <= 0 {
		logEvery = 1
	}
	l := &Logger{
		level:    level,
		format:   format,
		logEvery: logEvery,
		console:  true,
		stdout:   log.New(os.Stdout, "", 0),
		stderr:   log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		flags := log.LstdFlags
		if format == "json" {
			flags = 0
		}
		l.fileLog = log.New(file, "", flags)
	}

	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l, _ := NewLogger(LogLevelSilent, "")
	return l
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetConsole enables or disables stdout/stderr output. The TUI disables it
// because the terminal belongs to the UI.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
}

// SetSession tags every following line with a session id.
func (l *Logger) SetSession(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = id
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(LogLevelError) {
		l.write("error", fmt.Sprintf(format, v...), true)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.write("info", fmt.Sprintf(format, v...), false)
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.enabled(LogLevelVerbose) {
		l.write("verbose", fmt.Sprintf(format, v...), false)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.write("debug", fmt.Sprintf(format, v...), false)
	}
}

func (l *Logger) enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level >= level
}

// write writes a message to the appropriate outputs
func (l *Logger) write(level, msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	line := l.render(level, msg)

	// Always write to log file if available
	if l.fileLog != nil {
		l.fileLog.Println(line)
	} else if l.counter%l.logEvery != 0 {
		return
	}

	if !l.console {
		return
	}
	// Errors go to stderr, others to stdout (but only if verbose/debug)
	if isError {
		l.stderr.Println(line)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(line)
	}
}

func (l *Logger) render(level, msg string) string {
	if l.format == "json" {
		entry := map[string]string{
			"time":    time.Now().UTC().Format(time.RFC3339Nano),
			"level":   level,
			"message": msg,
		}
		if l.session != "" {
			entry["session"] = l.session
		}
		data, err := json.Marshal(entry)
		if err == nil {
			return string(data)
		}
	}
	line := strings.ToUpper(level) + ": " + msg
	if l.session != "" {
		line = "[" + l.session + "] " + line
	}
	return line
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogRequest logs one model service call
func (l *Logger) LogRequest(operation, url string, success bool, rttMs float64, err error) {
	var statusStr string
	if success {
		statusStr = "SUCCESS"
	} else {
		statusStr = "FAILED"
	}

	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}

	msg := fmt.Sprintf("%s %s %s (RTT: %.3fms)%s", statusStr, operation, url, rttMs, errStr)

	if success {
		l.Verbose("%s", msg)
	} else {
		l.Info("%s", msg)
	}
}

// LogStartup logs startup information
func (l *Logger) LogStartup(command, baseURL string, timeoutMs int, configPath string) {
	l.Info("Starting gpdplot %s", command)
	l.Verbose("  Service: %s", baseURL)
	l.Verbose("  Timeout: %d ms", timeoutMs)
	l.Verbose("  Config: %s", configPath)
}
