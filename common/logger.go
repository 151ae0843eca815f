package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity accepts debug, info, warn/warning and error in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging contract used by the configuration engine.
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...interface{})

	// Error logs an error
	Error(err error)

	Debug(msg string)
	Info(msg string)
	Warning(msg string)
}

// StdLogger implements Logger on top of the standard log package.
// Debug, info and warning go to the out writer, errors to the err writer.
type StdLogger struct {
	outLog   *log.Logger
	errLog   *log.Logger
	minLevel Severity
}

// NewStdLogger creates a logger writing to stdout and stderr.
func NewStdLogger(component string, minLevel Severity) *StdLogger {
	return NewStdLoggerWithWriter(component, os.Stdout, os.Stderr, minLevel)
}

// NewStdLoggerWithWriter creates a logger with custom writers.
func NewStdLoggerWithWriter(component string, stdout, stderr io.Writer, minLevel Severity) *StdLogger {
	prefix := ""
	if component != "" {
		prefix = component + ": "
	}
	return &StdLogger{
		outLog:   log.New(stdout, prefix, log.Ltime|log.Lmsgprefix),
		errLog:   log.New(stderr, prefix, log.Ltime|log.Lmsgprefix),
		minLevel: minLevel,
	}
}

// Log logs a message with the specified severity
func (l *StdLogger) Log(severity Severity, msg string) {
	if severity < l.minLevel {
		return
	}
	line := severity.String() + " " + msg
	if severity >= SeverityError {
		l.errLog.Output(2, line)
		return
	}
	l.outLog.Output(2, line)
}

func (l *StdLogger) Logf(severity Severity, format string, args ...interface{}) {
	l.Log(severity, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Error(err error) {
	if err != nil {
		l.Log(SeverityError, err.Error())
	}
}

func (l *StdLogger) Debug(msg string)   { l.Log(SeverityDebug, msg) }
func (l *StdLogger) Info(msg string)    { l.Log(SeverityInfo, msg) }
func (l *StdLogger) Warning(msg string) { l.Log(SeverityWarning, msg) }

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Log(severity Severity, msg string)                          {}
func (l *NoOpLogger) Logf(severity Severity, format string, args ...interface{}) {}
func (l *NoOpLogger) Error(err error)                                            {}
func (l *NoOpLogger) Debug(msg string)                                           {}
func (l *NoOpLogger) Info(msg string)                                            {}
func (l *NoOpLogger) Warning(msg string)                                         {}
