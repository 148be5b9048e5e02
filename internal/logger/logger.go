package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	Logger    *logrus.Logger = logrus.New() // Main application logger
	APILogger *logrus.Logger = logrus.New() // Access log, one line per request
)

// Initialize sets up the loggers with proper configuration. Application logs
// go to <dir>/civicwatch.log; access logs go to stdout.
func Initialize(logLevel, dir string) {
	var level logrus.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = logrus.DebugLevel
	case "INFO":
		level = logrus.InfoLevel
	case "WARN":
		level = logrus.WarnLevel
	case "ERROR":
		level = logrus.ErrorLevel
	default:
		level = logrus.InfoLevel
	}

	fileLogger := logrus.New()
	fileLogger.SetLevel(level)
	fileLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})
	fileLogger.SetReportCaller(true)

	APILogger = logrus.New()
	APILogger.SetOutput(os.Stdout)
	APILogger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})

	logPath := filepath.Join(dir, "civicwatch.log")
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Failed to create logs directory: %v\n", err)
		Logger = fileLogger
		return
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		Logger = fileLogger
		return
	}

	fileLogger.SetOutput(logFile)
	Logger = fileLogger

	Logger.WithFields(logrus.Fields{
		"api_logs":  "stdout",
		"app_logs":  "file",
		"log_level": level.String(),
		"log_file":  logPath,
	}).Info("Logging system initialized")
}

// GetLogger returns the configured main logger instance
func GetLogger() *logrus.Logger {
	return Logger
}

// WithContext creates a logger with additional context fields
func WithContext(fields map[string]interface{}) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithUser creates a logger with user context
func WithUser(userID uint, component string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"user_id":   userID,
		"component": component,
	})
}

// WithIssue creates a logger scoped to one issue
func WithIssue(issueID uint, component string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"issue_id":  issueID,
		"component": component,
	})
}

// WithError creates a logger with error context
func WithError(err error, component string) *logrus.Entry {
	fields := logrus.Fields{
		"error":     err.Error(),
		"component": component,
	}

	if GetLogger().GetLevel() >= logrus.DebugLevel {
		fields["stack_trace"] = getStackTrace()
	}

	return GetLogger().WithFields(fields)
}

func getStackTrace() string {
	var stack []string
	for i := 1; i < 10; i++ {
		if pc, file, line, ok := runtime.Caller(i); ok {
			fn := runtime.FuncForPC(pc)
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return strings.Join(stack, "\n")
}

func Debug(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Error(msg)
}

func Fatal(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Fatal(msg)
}
