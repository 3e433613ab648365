package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/calendar"
	"github.com/t77yq/pulse/internal/engine"
	"github.com/t77yq/pulse/internal/events"
	"github.com/t77yq/pulse/internal/model"
	"github.com/t77yq/pulse/internal/monitor"
	"github.com/t77yq/pulse/internal/storage"
)

const (
	// CalculationMethod names the scheduling engine in reports
	CalculationMethod = "Foundation Engine v1.0"

	// ConfidenceLevel is the fixed confidence reported for deterministic results
	ConfidenceLevel = 0.85

	defaultProjectName = "Untitled Project"
)

// AlgorithmsUsed lists the analyses applied to every calculation
var AlgorithmsUsed = []string{"CPM", "Basic Risk Analysis"}

// CalculationRequest is a validated-on-use calculation order
type CalculationRequest struct {
	ProjectName      string
	ProjectStartDate string
	Mode             model.AnalysisMode
	UseBusinessDays  bool
	Tasks            []model.ProjectTask
}

// Report is the calculation response sent to clients
type Report struct {
	Success              bool           `json:"success"`
	ProjectName          string         `json:"project_name"`
	ProjectStartDate     *string        `json:"project_start_date"`
	AnalysisMode         string         `json:"analysis_mode"`
	UseBusinessDays      bool           `json:"use_business_days"`
	CalculationTimestamp string         `json:"calculation_timestamp"`
	ProjectMetrics       ProjectMetrics `json:"project_metrics"`
	Tasks                []TaskReport   `json:"tasks"`
	CalculationMethod    string         `json:"calculation_method"`
	AlgorithmsUsed       []string       `json:"algorithms_used"`
	ConfidenceLevel      float64        `json:"confidence_level"`
}

// ProjectMetrics holds the project level figures of a report
type ProjectMetrics struct {
	TotalDurationDays float64  `json:"total_duration_days"`
	OverallRiskLevel  string   `json:"overall_risk_level"`
	HighRiskTaskCount int      `json:"high_risk_task_count"`
	CriticalPathIDs   []string `json:"critical_path_ids"`
	TotalTasks        int      `json:"total_tasks"`
}

// TaskReport is one task of a report. Day figures are rounded to 0.1.
type TaskReport struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	DurationDays       float64  `json:"duration_days"`
	Predecessors       []string `json:"predecessors"`
	ScheduledStartDay  float64  `json:"scheduled_start_day"`
	ScheduledFinishDay float64  `json:"scheduled_finish_day"`
	RiskLevel          string   `json:"risk_level"`
	RiskScore          float64  `json:"risk_score"`
	IsCritical         bool     `json:"is_critical"`
	FloatDays          float64  `json:"float_days"`
	BlocksTasks        []string `json:"blocks_tasks"`
	BlockedByTasks     []string `json:"blocked_by_tasks"`
	ActualStartDate    string   `json:"actual_start_date,omitempty"`
	ActualEndDate      string   `json:"actual_end_date,omitempty"`
}

// Calculator runs calculations and fans their outcome out to history,
// events and alerts. Every collaborator except the logger is optional.
type Calculator struct {
	logger    *zap.Logger
	history   storage.CalculationHistory
	publisher events.Publisher
	alerts    *monitor.AlertManager
	now       func() time.Time
}

// Option configures a Calculator
type Option func(*Calculator)

// WithHistory records every calculation in h
func WithHistory(h storage.CalculationHistory) Option {
	return func(c *Calculator) { c.history = h }
}

// WithPublisher publishes a summary event after every calculation
func WithPublisher(p events.Publisher) Option {
	return func(c *Calculator) { c.publisher = p }
}

// WithAlerts evaluates alert rules against every successful calculation
func WithAlerts(m *monitor.AlertManager) Option {
	return func(c *Calculator) { c.alerts = m }
}

// NewCalculator creates a new calculator
func NewCalculator(logger *zap.Logger, opts ...Option) *Calculator {
	c := &Calculator{
		logger:    logger.Named("calculator"),
		publisher: events.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the request and fills in defaults
func (r *CalculationRequest) Validate() error {
	if r.Mode == "" {
		r.Mode = model.AnalysisModeBaseline
	}
	if !r.Mode.Valid() {
		return invalidf("unknown mode %q: expected baseline or current_status", r.Mode)
	}
	if r.ProjectName == "" {
		r.ProjectName = defaultProjectName
	}
	if r.ProjectStartDate != "" {
		if _, err := calendar.ParseDate(r.ProjectStartDate); err != nil {
			return invalidf("invalid project_start_date %q: expected YYYY-MM-DD", r.ProjectStartDate)
		}
	}
	return ValidateTasks(r.Tasks)
}

// ValidateTasks checks the field level constraints of a task list. Graph
// constraints are left to the engine.
func ValidateTasks(tasks []model.ProjectTask) error {
	if len(tasks) == 0 {
		return invalidf("Tasks list cannot be empty")
	}
	for i := range tasks {
		if err := ValidateTask(i, tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTask checks a single task; i is its position in the list
func ValidateTask(i int, t model.ProjectTask) error {
	if t.ID == "" {
		return invalidf("Invalid task data: task %d is missing an id", i+1)
	}
	if t.Name == "" {
		return invalidf("Invalid task data: task %s is missing a name", t.ID)
	}
	if math.IsNaN(t.DurationDays) || math.IsInf(t.DurationDays, 0) || t.DurationDays < 0 {
		return invalidf("Invalid task data: task %s has invalid duration_days %v", t.ID, t.DurationDays)
	}
	if math.IsNaN(t.CompletionPct) || t.CompletionPct < 0 || t.CompletionPct > 100 {
		return invalidf("Invalid task data: task %s has completion_pct %v outside 0-100", t.ID, t.CompletionPct)
	}
	return nil
}

// EngineInputs converts project tasks to engine inputs using the effective
// duration of the mode
func EngineInputs(tasks []model.ProjectTask, mode model.AnalysisMode) []engine.TaskInput {
	inputs := make([]engine.TaskInput, len(tasks))
	for i, t := range tasks {
		inputs[i] = engine.TaskInput{
			ID:             t.ID,
			Name:           t.Name,
			DurationDays:   t.EffectiveDuration(mode),
			Predecessors:   t.Predecessors,
			UserRiskRating: t.UserRiskRating,
		}
	}
	return inputs
}

// Calculate validates the request, runs the engine and builds the report
func (c *Calculator) Calculate(ctx context.Context, req *CalculationRequest) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := c.now()
	result, err := engine.Calculate(EngineInputs(req.Tasks, req.Mode))
	elapsed := c.now().Sub(started)

	record := &model.CalculationRecord{
		ID:          uuid.New().String(),
		ProjectName: req.ProjectName,
		Mode:        req.Mode,
		TaskCount:   len(req.Tasks),
		StartedAt:   started.UTC(),
		Duration:    elapsed,
	}

	if err != nil {
		record.Error = err.Error()
		c.recordHistory(ctx, record)
		c.logger.Info("Calculation rejected",
			zap.String("project", req.ProjectName),
			zap.Error(err))
		return nil, err
	}

	record.TotalDurationDays = result.TotalDurationDays
	record.OverallRiskLevel = string(result.OverallRiskLevel)
	record.HighRiskTaskCount = result.HighRiskTaskCount
	c.recordHistory(ctx, record)

	report, err := BuildReport(req, result, started)
	if err != nil {
		return nil, err
	}

	event := &events.CalculatedEvent{
		CalculationID:     record.ID,
		ProjectName:       req.ProjectName,
		Mode:              req.Mode,
		TaskCount:         len(req.Tasks),
		TotalDurationDays: result.TotalDurationDays,
		OverallRiskLevel:  string(result.OverallRiskLevel),
		HighRiskTaskCount: result.HighRiskTaskCount,
		CriticalPathIDs:   result.CriticalPathIDs,
		CalculatedAt:      record.StartedAt,
	}
	if err := c.publisher.PublishCalculated(ctx, event); err != nil {
		c.logger.Warn("Failed to publish calculation event",
			zap.String("calculation_id", record.ID),
			zap.Error(err))
	}

	if c.alerts != nil {
		c.alerts.Evaluate(ctx, req.ProjectName, result)
	}

	c.logger.Info("Calculation completed",
		zap.String("calculation_id", record.ID),
		zap.String("project", req.ProjectName),
		zap.String("mode", string(req.Mode)),
		zap.Int("tasks", len(req.Tasks)),
		zap.Float64("total_duration_days", result.TotalDurationDays),
		zap.String("overall_risk_level", string(result.OverallRiskLevel)),
		zap.Duration("took", elapsed))

	return report, nil
}

func (c *Calculator) recordHistory(ctx context.Context, record *model.CalculationRecord) {
	if c.history == nil {
		return
	}
	if err := c.history.Store(ctx, record); err != nil {
		c.logger.Error("Failed to store calculation record",
			zap.String("calculation_id", record.ID),
			zap.Error(err))
	}
}

// BuildReport converts an engine result into the client report
func BuildReport(req *CalculationRequest, result *engine.ProjectResult, at time.Time) (*Report, error) {
	report := &Report{
		Success:              true,
		ProjectName:          req.ProjectName,
		AnalysisMode:         string(req.Mode),
		UseBusinessDays:      req.UseBusinessDays,
		CalculationTimestamp: at.UTC().Format(time.RFC3339),
		ProjectMetrics: ProjectMetrics{
			TotalDurationDays: result.TotalDurationDays,
			OverallRiskLevel:  string(result.OverallRiskLevel),
			HighRiskTaskCount: result.HighRiskTaskCount,
			CriticalPathIDs:   result.CriticalPathIDs,
			TotalTasks:        len(result.Tasks),
		},
		Tasks:             make([]TaskReport, 0, len(result.Tasks)),
		CalculationMethod: CalculationMethod,
		AlgorithmsUsed:    AlgorithmsUsed,
		ConfidenceLevel:   ConfidenceLevel,
	}

	var start time.Time
	if req.ProjectStartDate != "" {
		var err error
		start, err = calendar.ParseDate(req.ProjectStartDate)
		if err != nil {
			return nil, invalidf("invalid project_start_date %q", req.ProjectStartDate)
		}
		date := req.ProjectStartDate
		report.ProjectStartDate = &date
	}

	for _, t := range result.Tasks {
		tr := TaskReport{
			ID:                 t.ID,
			Name:               t.Name,
			DurationDays:       t.DurationDays,
			Predecessors:       t.Predecessors,
			ScheduledStartDay:  Round1(t.ScheduledStartDay),
			ScheduledFinishDay: Round1(t.ScheduledFinishDay),
			RiskLevel:          string(t.RiskLevel),
			RiskScore:          Round1(t.RiskScore),
			IsCritical:         t.IsCritical,
			FloatDays:          Round1(t.FloatDays),
			BlocksTasks:        t.BlocksTasks,
			BlockedByTasks:     t.BlockedByTasks,
		}
		if report.ProjectStartDate != nil {
			tr.ActualStartDate = calendar.Format(calendar.DayToDate(start, t.ScheduledStartDay, req.UseBusinessDays))
			tr.ActualEndDate = calendar.Format(calendar.DayToDate(start, t.ScheduledFinishDay, req.UseBusinessDays))
		}
		report.Tasks = append(report.Tasks, tr)
	}

	return report, nil
}

// Round1 rounds v to one decimal place, halves to even
func Round1(v float64) float64 {
	r := math.RoundToEven(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}
