package events

import (
	"context"
	"time"

	"github.com/t77yq/pulse/internal/model"
)

const (
	// StreamName is the JetStream stream holding project events
	StreamName = "PROJECTS"

	// SubjectCalculated carries a CalculatedEvent after every calculation
	SubjectCalculated = "project.calculated"

	// SubjectAlert carries a fired model.Alert
	SubjectAlert = "project.alert"

	streamSubjects = "project.>"
	streamMaxAge   = 24 * time.Hour
	streamMaxMsgs  = -1
)

// CalculatedEvent summarises a finished project calculation
type CalculatedEvent struct {
	CalculationID     string             `json:"calculation_id"`
	ProjectName       string             `json:"project_name"`
	Mode              model.AnalysisMode `json:"mode"`
	TaskCount         int                `json:"task_count"`
	TotalDurationDays float64            `json:"total_duration_days"`
	OverallRiskLevel  string             `json:"overall_risk_level"`
	HighRiskTaskCount int                `json:"high_risk_task_count"`
	CriticalPathIDs   []string           `json:"critical_path_ids"`
	CalculatedAt      time.Time          `json:"calculated_at"`
}

// Publisher publishes project events
type Publisher interface {
	// PublishCalculated publishes a calculation summary
	PublishCalculated(ctx context.Context, event *CalculatedEvent) error

	// PublishAlert publishes a fired alert
	PublishAlert(ctx context.Context, alert *model.Alert) error
}

// NopPublisher discards every event. It is used when NATS is disabled.
type NopPublisher struct{}

// PublishCalculated implements Publisher.PublishCalculated
func (NopPublisher) PublishCalculated(context.Context, *CalculatedEvent) error { return nil }

// PublishAlert implements Publisher.PublishAlert
func (NopPublisher) PublishAlert(context.Context, *model.Alert) error { return nil }

var _ Publisher = NopPublisher{}
