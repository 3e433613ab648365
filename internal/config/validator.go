package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/t77yq/pulse/internal/model"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidDialects returns the list of supported database dialects
func ValidDialects() []string {
	return []string{"sqlite", "postgres"}
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if !slices.Contains(ValidLogLevels(), c.App.LogLevel) {
		add("app.log_level", c.App.LogLevel, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if c.Server.Addr == "" {
		add("server.addr", c.Server.Addr, "must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", c.Server.ShutdownTimeout, "must be positive")
	}

	if !slices.Contains(ValidDialects(), c.Database.Dialect) {
		add("database.dialect", c.Database.Dialect, "must be one of "+strings.Join(ValidDialects(), ", "))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		add("database.dsn", c.Database.DSN, "must not be empty")
	}
	if c.Database.HistoryRetention < 0 {
		add("database.history_retention", c.Database.HistoryRetention, "must not be negative")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		add("nats.url", c.NATS.URL, "is required when nats is enabled")
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			add("archive.endpoint", c.Archive.Endpoint, "is required when the archive is enabled")
		}
		if c.Archive.Bucket == "" {
			add("archive.bucket", c.Archive.Bucket, "is required when the archive is enabled")
		}
	}

	if c.Jobs.Workers < 1 {
		add("jobs.workers", c.Jobs.Workers, "must be at least 1")
	}
	if c.Jobs.QueueSize < 1 {
		add("jobs.queue_size", c.Jobs.QueueSize, "must be at least 1")
	}
	if c.Jobs.Capacity < 1 {
		add("jobs.capacity", c.Jobs.Capacity, "must be at least 1")
	}
	if c.Jobs.TTL <= 0 {
		add("jobs.ttl", c.Jobs.TTL, "must be positive")
	}

	if c.Maintenance.Enabled {
		if _, err := cronParser.Parse(c.Maintenance.HistorySchedule); err != nil {
			add("maintenance.history_schedule", c.Maintenance.HistorySchedule, "invalid cron expression")
		}
		if _, err := cronParser.Parse(c.Maintenance.JobSchedule); err != nil {
			add("maintenance.job_schedule", c.Maintenance.JobSchedule, "invalid cron expression")
		}
	}

	if c.Monitor.Interval <= 0 {
		add("monitor.interval", c.Monitor.Interval, "must be positive")
	}
	if c.Gemini.MaxAttempts < 1 {
		add("gemini.max_attempts", c.Gemini.MaxAttempts, "must be at least 1")
	}

	for i, rule := range c.Alerts {
		field := fmt.Sprintf("alerts[%d]", i)
		switch rule.Type {
		case model.AlertTypeHighRiskTasks, model.AlertTypeDuration, model.AlertTypeOverallRisk:
		default:
			add(field+".type", rule.Type, "unknown alert type")
		}
		if rule.Name == "" {
			add(field+".name", rule.Name, "must not be empty")
		}
	}

	return errs
}
