package model

import (
	"time"
)

// AnalysisMode controls how task durations are prepared before scheduling
type AnalysisMode string

const (
	// AnalysisModeBaseline schedules the full planned durations
	AnalysisModeBaseline AnalysisMode = "baseline"
	// AnalysisModeCurrentStatus schedules only the remaining work of each task
	AnalysisModeCurrentStatus AnalysisMode = "current_status"
)

// Valid reports whether the mode is known
func (m AnalysisMode) Valid() bool {
	return m == AnalysisModeBaseline || m == AnalysisModeCurrentStatus
}

// ProjectTask is a task as submitted by clients and stored with a project
type ProjectTask struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	DurationDays   float64  `json:"duration_days"`
	Predecessors   []string `json:"predecessors"`
	UserRiskRating int      `json:"user_risk_rating"`
	CompletionPct  float64  `json:"completion_pct,omitempty"`
}

// EffectiveDuration returns the duration the scheduler should use in the
// given mode. In current_status mode completed work is taken off.
func (t ProjectTask) EffectiveDuration(mode AnalysisMode) float64 {
	if mode == AnalysisModeCurrentStatus && t.CompletionPct > 0 {
		return t.DurationDays * (100 - t.CompletionPct) / 100
	}
	return t.DurationDays
}

// CalculationRecord is one entry of the calculation history
type CalculationRecord struct {
	ID                string        `json:"id"`
	ProjectName       string        `json:"project_name"`
	Mode              AnalysisMode  `json:"mode"`
	TaskCount         int           `json:"task_count"`
	TotalDurationDays float64       `json:"total_duration_days"`
	OverallRiskLevel  string        `json:"overall_risk_level"`
	HighRiskTaskCount int           `json:"high_risk_task_count"`
	Error             string        `json:"error,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}
