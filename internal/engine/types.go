package engine

// RiskLevel is the categorical risk band of a task or project
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// rank orders levels so aggregates can take a maximum
func (l RiskLevel) rank() int {
	switch l {
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 1
	default:
		return 0
	}
}

// TaskInput is a validated task handed to the engine. DurationDays is the
// effective duration; any completion adjustment happens before Calculate.
type TaskInput struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	DurationDays   float64  `json:"duration_days"`
	Predecessors   []string `json:"predecessors"`
	UserRiskRating int      `json:"user_risk_rating"`
}

// TaskResult is the schedule and risk analysis of a single task
type TaskResult struct {
	TaskInput

	ScheduledStartDay  float64 `json:"scheduled_start_day"`
	ScheduledFinishDay float64 `json:"scheduled_finish_day"`
	LatestStartDay     float64 `json:"latest_start_day"`
	LatestFinishDay    float64 `json:"latest_finish_day"`
	FloatDays          float64 `json:"float_days"`
	IsCritical         bool    `json:"is_critical"`

	RiskLevel RiskLevel `json:"risk_level"`
	RiskScore float64   `json:"risk_score"`

	BlocksTasks    []string `json:"blocks_tasks"`
	BlockedByTasks []string `json:"blocked_by_tasks"`
}

// ProjectResult holds the complete analysis of one task set
type ProjectResult struct {
	Tasks             []TaskResult `json:"tasks"` // same order as the input
	TotalDurationDays float64      `json:"total_duration_days"`
	CriticalPathIDs   []string     `json:"critical_path_ids"`
	OverallRiskLevel  RiskLevel    `json:"overall_risk_level"`
	HighRiskTaskCount int          `json:"high_risk_task_count"`
}

// Task returns the result for a task ID
func (r *ProjectResult) Task(id string) (*TaskResult, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}
