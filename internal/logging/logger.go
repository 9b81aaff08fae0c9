package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string // "text" or "json"
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) *Logger {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	return NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	})
}

// ParseLevel maps a level name (including legacy syslog-style names) to a LogLevel
func ParseLevel(name string) LogLevel {
	switch name {
	case "quiet", "error", "ERROR":
		return LogLevelQuiet
	case "verbose", "VERBOSE":
		return LogLevelVerbose
	case "debug", "DEBUG", "trace", "TRACE":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Backup operation logging methods

// LogCommandExecution logs one external command invocation and its outcome
func (l *Logger) LogCommandExecution(command string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "command_execution",
		"command":   command,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Debug("Command completed")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Command failed")
	}
}

// LogArtifactStage logs one stage transition of a database's artifact pipeline
func (l *Logger) LogArtifactStage(database, stage string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "artifact_pipeline",
		"database":  database,
		"stage":     stage,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Pipeline stage failed")
	} else {
		l.logger.WithFields(fields).Info("Pipeline stage completed")
	}
}

// LogRetentionDecision logs the outcome for one remote object during a sweep
func (l *Logger) LogRetentionDecision(key, decision, reason string) {
	l.logger.WithFields(logrus.Fields{
		"operation": "retention_sweep",
		"key":       key,
		"decision":  decision,
		"reason":    reason,
	}).Debug("Retention decision")
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// IsVerbose returns true if verbose or debug logging is enabled
func (l *Logger) IsVerbose() bool {
	return l.level == LogLevelVerbose || l.level == LogLevelDebug
}
