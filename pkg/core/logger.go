package core

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger is the diagnostic sink the state machine runtime writes to.
// The runtime only requires "accept a severity and a text line";
// this abstraction allows swapping logging implementations.
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// WithFields returns a new logger with structured fields
	// included in all subsequent log entries
	WithFields(fields map[string]interface{}) Logger
}

// LoggerConfig configures logger behavior
type LoggerConfig struct {
	// JSONOutput enables JSON structured output
	JSONOutput bool
	// Level sets the minimum log level (DEBUG, INFO, WARN, ERROR)
	Level string
	// Output overrides the destination; defaults to stderr for ERROR/WARN
	// and stdout for INFO/DEBUG
	Output io.Writer
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(level string) int {
	switch level {
	case "ERROR":
		return levelError
	case "WARN":
		return levelWarn
	case "INFO":
		return levelInfo
	default:
		return levelDebug
	}
}

// defaultLogger implements Logger using Go's standard log package.
// Can be swapped with other logging implementations (e.g., structured loggers)
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	config      LoggerConfig
	minLevel    int
	fields      map[string]interface{} // Structured fields
}

// NewDefaultLogger creates a new default logger implementation
func NewDefaultLogger() Logger {
	return NewLogger(LoggerConfig{
		JSONOutput: false,
		Level:      "DEBUG",
	})
}

// NewLogger creates a new logger with configuration
func NewLogger(config LoggerConfig) Logger {
	errOut := io.Writer(os.Stderr)
	stdOut := io.Writer(os.Stdout)
	if config.Output != nil {
		errOut = config.Output
		stdOut = config.Output
	}
	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", log.LstdFlags),
		warnLogger:  log.New(errOut, "[WARN] ", log.LstdFlags),
		infoLogger:  log.New(stdOut, "[INFO] ", log.LstdFlags),
		debugLogger: log.New(stdOut, "[DEBUG] ", log.LstdFlags),
		config:      config,
		minLevel:    parseLevel(config.Level),
		fields:      make(map[string]interface{}),
	}
}

// NewJSONLogger creates a logger with JSON output enabled
func NewJSONLogger() Logger {
	return NewLogger(LoggerConfig{
		JSONOutput: true,
		Level:      "DEBUG",
	})
}

// logEntry represents a structured log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// log writes a log entry with structured fields
func (l *defaultLogger) log(level int, name string, logger *log.Logger, message string) {
	if level < l.minLevel {
		return
	}
	if l.config.JSONOutput {
		entry := logEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     name,
			Message:   message,
		}
		if len(l.fields) > 0 {
			entry.Fields = make(map[string]interface{})
			for k, v := range l.fields {
				entry.Fields[k] = v
			}
		}
		jsonData, err := json.Marshal(entry)
		if err == nil {
			logger.Output(3, string(jsonData))
		} else {
			// Fallback to plain text if JSON marshal fails
			logger.Output(3, fmt.Sprintf("[%s] %s %v", name, message, l.fields))
		}
	} else {
		// Plain text output with fields appended
		if len(l.fields) > 0 {
			logger.Output(3, fmt.Sprintf("%s %v", message, l.fields))
		} else {
			logger.Output(3, message)
		}
	}
}

// Error logs an error message
func (l *defaultLogger) Error(args ...interface{}) {
	l.log(levelError, "ERROR", l.errorLogger, fmt.Sprint(args...))
}

// Errorf logs a formatted error message
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.log(levelError, "ERROR", l.errorLogger, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *defaultLogger) Warn(args ...interface{}) {
	l.log(levelWarn, "WARN", l.warnLogger, fmt.Sprint(args...))
}

// Warnf logs a formatted warning message
func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.log(levelWarn, "WARN", l.warnLogger, fmt.Sprintf(format, args...))
}

// Info logs an informational message
func (l *defaultLogger) Info(args ...interface{}) {
	l.log(levelInfo, "INFO", l.infoLogger, fmt.Sprint(args...))
}

// Infof logs a formatted informational message
func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.log(levelInfo, "INFO", l.infoLogger, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *defaultLogger) Debug(args ...interface{}) {
	l.log(levelDebug, "DEBUG", l.debugLogger, fmt.Sprint(args...))
}

// Debugf logs a formatted debug message
func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.log(levelDebug, "DEBUG", l.debugLogger, fmt.Sprintf(format, args...))
}

// WithFields returns a new logger with structured fields.
// Fields are included in all subsequent log entries
func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{})
	// Copy existing fields
	for k, v := range l.fields {
		newFields[k] = v
	}
	// Merge new fields (new fields override existing ones)
	for k, v := range fields {
		newFields[k] = v
	}
	return &defaultLogger{
		errorLogger: l.errorLogger,
		warnLogger:  l.warnLogger,
		infoLogger:  l.infoLogger,
		debugLogger: l.debugLogger,
		config:      l.config,
		minLevel:    l.minLevel,
		fields:      newFields,
	}
}
