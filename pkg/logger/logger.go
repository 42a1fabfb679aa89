package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	// Set output format
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	// Set output destination
	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithOrderID creates a new logger entry with an order ID field
func (l *Logger) WithOrderID(orderID string) *logrus.Entry {
	return l.Logger.WithField("order_id", orderID)
}

// WithTechnicianID creates a new logger entry with a technician ID field
func (l *Logger) WithTechnicianID(technicianID string) *logrus.Entry {
	return l.Logger.WithField("technician_id", technicianID)
}

// WithUserID creates a new logger entry with user ID field
func (l *Logger) WithUserID(userID string) *logrus.Entry {
	return l.Logger.WithField("user_id", userID)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Audit logs audit events with structured format
func (l *Logger) Audit(userID, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
		"success":  success,
		"details":  details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// Allocation logs the outcome of a technician allocation attempt
func (l *Logger) Allocation(orderID, technicianID string, eligible int, success bool) {
	entry := l.Logger.WithFields(logrus.Fields{
		"allocation":     true,
		"order_id":       orderID,
		"technician_id":  technicianID,
		"eligible_count": eligible,
	})

	if success {
		entry.Info("Technician allocated")
	} else {
		entry.Warn("No technician available")
	}
}
