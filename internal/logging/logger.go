package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/irfndi/kdp-pulse/internal/config"
)

// Options configures the service logger
type Options struct {
	Environment string
	Level       string
	File        config.LoggingConfig
	// Output overrides stdout, mainly for tests
	Output io.Writer
}

// NewLogger builds the service logger: JSON outside development, text in
// development, and an optional rotating log file next to the main output
func NewLogger(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(ParseLogrusLevel(opts.Level))

	if strings.EqualFold(opts.Environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.File.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File.File,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	return logger
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// LogStartup logs application startup information
func LogStartup(logger *logrus.Logger, serviceName, version string, port int) {
	logger.WithFields(logrus.Fields{
		"service": serviceName,
		"version": version,
		"port":    port,
		"event":   "startup",
	}).Info("Service starting")
}

// LogShutdown logs application shutdown information
func LogShutdown(logger *logrus.Logger, serviceName, reason string) {
	logger.WithFields(logrus.Fields{
		"service": serviceName,
		"reason":  reason,
		"event":   "shutdown",
	}).Info("Service shutting down")
}

// LogAPIRequest logs one served HTTP request
func LogAPIRequest(logger *logrus.Logger, method, path string, statusCode int, durationMs int64, userID string) {
	entry := logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      statusCode,
		"duration_ms": durationMs,
		"event":       "api",
	})
	if userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	if statusCode >= 500 {
		entry.Error("API request")
		return
	}
	entry.Info("API request")
}

// LogBusinessEvent logs a domain event such as a finished generation run
func LogBusinessEvent(logger *logrus.Logger, eventType string, details map[string]interface{}) {
	logger.WithFields(logrus.Fields{
		"event_type": eventType,
		"details":    details,
		"event":      "business",
	}).Info("Business event")
}
