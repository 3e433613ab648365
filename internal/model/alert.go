package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the condition an alert rule checks
type AlertType string

const (
	// AlertTypeHighRiskTasks fires when the number of High risk tasks reaches Threshold
	AlertTypeHighRiskTasks AlertType = "high_risk_tasks"
	// AlertTypeDuration fires when the project duration in days exceeds Threshold
	AlertTypeDuration AlertType = "duration"
	// AlertTypeOverallRisk fires when the overall risk level is High
	AlertTypeOverallRisk AlertType = "overall_risk"
)

// AlertRule defines a rule evaluated against every calculation
type AlertRule struct {
	ID        string        `json:"id" mapstructure:"id"`
	Name      string        `json:"name" mapstructure:"name"`
	Type      AlertType     `json:"type" mapstructure:"type"`
	Threshold float64       `json:"threshold,omitempty" mapstructure:"threshold"`
	Severity  AlertSeverity `json:"severity" mapstructure:"severity"`
	Silenced  bool          `json:"silenced" mapstructure:"silenced"`
	NotifyURL string        `json:"notify_url,omitempty" mapstructure:"notify_url"`
	CreatedAt time.Time     `json:"created_at" mapstructure:"-"`
	UpdatedAt time.Time     `json:"updated_at" mapstructure:"-"`
}

// Alert represents a fired alert
type Alert struct {
	ID          string                 `json:"id"`
	RuleID      string                 `json:"rule_id"`
	Type        AlertType              `json:"type"`
	Severity    AlertSeverity          `json:"severity"`
	ProjectName string                 `json:"project_name"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
