package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/t77yq/pulse/internal/insights"
	"github.com/t77yq/pulse/internal/model"
	"github.com/t77yq/pulse/internal/service"
)

const defaultDurationDays = 1.0

// flexString accepts a JSON string or number. Clients send task IDs both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// taskPayload is a task as it arrives on the wire. Pointers tell missing
// fields apart from zero values.
type taskPayload struct {
	ID             *flexString  `json:"id"`
	Name           *flexString  `json:"name"`
	DurationDays   *float64     `json:"duration_days"`
	Predecessors   []flexString `json:"predecessors"`
	UserRiskRating *float64     `json:"user_risk_rating"`
	CompletionPct  *float64     `json:"completion_pct"`
}

func (p taskPayload) toTask(i int) (model.ProjectTask, error) {
	if p.ID == nil {
		return model.ProjectTask{}, fmt.Errorf("Invalid task data: task %d is missing 'id'", i+1)
	}
	if p.Name == nil {
		return model.ProjectTask{}, fmt.Errorf("Invalid task data: task %s is missing 'name'", string(*p.ID))
	}

	task := model.ProjectTask{
		ID:           string(*p.ID),
		Name:         string(*p.Name),
		DurationDays: defaultDurationDays,
		Predecessors: make([]string, 0, len(p.Predecessors)),
	}
	if p.DurationDays != nil {
		task.DurationDays = *p.DurationDays
	}
	if p.UserRiskRating != nil {
		task.UserRiskRating = int(math.Trunc(*p.UserRiskRating))
	}
	if p.CompletionPct != nil {
		task.CompletionPct = *p.CompletionPct
	}
	for _, pred := range p.Predecessors {
		task.Predecessors = append(task.Predecessors, string(pred))
	}
	return task, nil
}

func toTasks(payloads []taskPayload) ([]model.ProjectTask, error) {
	tasks := make([]model.ProjectTask, 0, len(payloads))
	for i, p := range payloads {
		task, err := p.toTask(i)
		if err != nil {
			return nil, &service.RequestError{Message: err.Error()}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// calculateRequest is the body of POST /api/calculate-project
type calculateRequest struct {
	ProjectName      string         `json:"project_name"`
	ProjectStartDate *string        `json:"project_start_date"`
	Mode             string         `json:"mode"`
	UseBusinessDays  bool           `json:"use_business_days"`
	Tasks            *[]taskPayload `json:"tasks"`
}

func (r *calculateRequest) toCalculation() (*service.CalculationRequest, error) {
	if r.Tasks == nil {
		return nil, &service.RequestError{Message: "Missing 'tasks' in request"}
	}
	if len(*r.Tasks) == 0 {
		return nil, &service.RequestError{Message: "Tasks list cannot be empty"}
	}
	tasks, err := toTasks(*r.Tasks)
	if err != nil {
		return nil, err
	}

	req := &service.CalculationRequest{
		ProjectName:     r.ProjectName,
		Mode:            model.AnalysisMode(r.Mode),
		UseBusinessDays: r.UseBusinessDays,
		Tasks:           tasks,
	}
	if r.ProjectStartDate != nil {
		req.ProjectStartDate = *r.ProjectStartDate
	}
	return req, req.Validate()
}

// projectRequest is the body of POST /api/projects
type projectRequest struct {
	ID                *flexString     `json:"id"`
	Name              *string         `json:"name"`
	StartDate         string          `json:"project_start_date"`
	Tasks             *[]taskPayload  `json:"tasks"`
	FoundationResults json.RawMessage `json:"foundationResults"`
}

func (r *projectRequest) toProject() (*model.Project, error) {
	if r.Name == nil || r.Tasks == nil {
		return nil, &service.RequestError{Message: "Missing required fields"}
	}
	tasks, err := toTasks(*r.Tasks)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := service.ValidateTask(i, tasks[i]); err != nil {
			return nil, &service.RequestError{Message: "Validation error: " + err.Error()}
		}
	}

	project := &model.Project{
		Name:      *r.Name,
		StartDate: r.StartDate,
		Tasks:     tasks,
	}
	if r.ID != nil {
		project.ID = string(*r.ID)
	}
	if len(r.FoundationResults) > 0 && !bytes.Equal(bytes.TrimSpace(r.FoundationResults), []byte("null")) {
		project.FoundationResults = r.FoundationResults
	}
	return project, nil
}

// insightsProject is project data as sent to the insight endpoints. It is
// decoded leniently since it is only used to build a prompt.
type insightsProject struct {
	Name        string        `json:"name"`
	ProjectName string        `json:"project_name"`
	Tasks       []taskPayload `json:"tasks"`
}

func (p insightsProject) toProjectData() insights.ProjectData {
	data := insights.ProjectData{Name: p.Name, ProjectName: p.ProjectName}
	for i, t := range p.Tasks {
		if t.ID == nil {
			id := flexString(strconv.Itoa(i + 1))
			t.ID = &id
		}
		if t.Name == nil {
			name := flexString("Unknown")
			t.Name = &name
		}
		task, _ := t.toTask(i)
		data.Tasks = append(data.Tasks, task)
	}
	return data
}

type executiveSummaryRequest struct {
	ProjectData     insightsProject        `json:"project_data"`
	AnalysisResults map[string]interface{} `json:"analysis_results"`
}

// DecodeCalculation reads a calculate-project body from r and validates it
func DecodeCalculation(r io.Reader) (*service.CalculationRequest, error) {
	var body calculateRequest
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, &service.RequestError{Message: "Invalid JSON body: " + err.Error()}
	}
	return body.toCalculation()
}
