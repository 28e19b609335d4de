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

	"github.com/sirupsen/logrus"
)

var (
	Logger *logrus.Logger // Main logger instance

	initOnce sync.Once
)

// Initialize sets up the application logger. Output goes to
// <dir>/portal.log, or stdout when the file cannot be opened.
func Initialize(levelName, dir string) {
	l := logrus.New()
	l.SetLevel(parseLevel(levelName))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})
	l.SetReportCaller(true)

	var out io.Writer = os.Stdout
	logPath := ""
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("Failed to create logs directory: %v\n", err)
		} else {
			logPath = filepath.Join(dir, "portal.log")
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logPath = ""
			} else {
				out = f
			}
		}
	}
	l.SetOutput(out)

	Logger = l
	initOnce.Do(func() {})

	Logger.WithFields(logrus.Fields{
		"log_level": l.GetLevel().String(),
		"log_file":  logPath,
	}).Info("Logging system initialized")
}

func parseLevel(name string) logrus.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// GetLogger returns the configured logger, falling back to a stdout logger
// when Initialize was never called (tests, CLIs).
func GetLogger() *logrus.Logger {
	initOnce.Do(func() {
		if Logger == nil {
			Logger = logrus.New()
			Logger.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
		}
	})
	return Logger
}

// WithContext creates a logger with additional context fields
func WithContext(fields map[string]interface{}) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithJob creates a logger with job context
func WithJob(jobID uint, operation string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"job_id":    jobID,
		"operation": operation,
		"component": "pipeline",
	})
}

// WithSection creates a logger with section context
func WithSection(sectionID uint, sectionType string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"section_id":   sectionID,
		"section_type": sectionType,
		"component":    "pipeline",
	})
}

// WithLedger creates a logger with gems ledger context
func WithLedger(userID uint, operation string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"user_id":   userID,
		"operation": operation,
		"component": "ledger",
	})
}

// WithLLM creates a logger with LLM service context
func WithLLM(jobID *uint, callType string) *logrus.Entry {
	fields := logrus.Fields{
		"component": "llm_service",
		"call_type": callType,
	}
	if jobID != nil {
		fields["job_id"] = *jobID
	}
	return GetLogger().WithFields(fields)
}

// WithUser creates a logger with user context
func WithUser(userID uint) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"user_id":   userID,
		"component": "controller",
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
	for i := 2; i < 10; i++ {
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
