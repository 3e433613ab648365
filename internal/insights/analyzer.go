package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

const (
	maxContextTasks   = 10
	highRiskRating    = 4
	timelineExcerpt   = 200
	fallbackModelName = DefaultModel
)

// ProjectData is the project description sent to the model
type ProjectData struct {
	Name        string              `json:"name"`
	ProjectName string              `json:"project_name"`
	Tasks       []model.ProjectTask `json:"tasks"`
}

// Title returns the project's display name
func (p ProjectData) Title() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.ProjectName != "":
		return p.ProjectName
	default:
		return "Untitled Project"
	}
}

// Result is the response envelope of every analysis
type Result struct {
	Success          bool            `json:"success"`
	Analysis         json.RawMessage `json:"analysis,omitempty"`
	Summary          json.RawMessage `json:"summary,omitempty"`
	Insights         json.RawMessage `json:"insights,omitempty"`
	FallbackInsights *QuickInsights  `json:"fallback_insights,omitempty"`
	Error            string          `json:"error,omitempty"`
	ModelUsed        string          `json:"model_used,omitempty"`
}

// RiskAnalysis is the shape requested from the model for a risk analysis
type RiskAnalysis struct {
	RiskAssessment     string   `json:"risk_assessment"`
	KeyRisks           []string `json:"key_risks"`
	Recommendations    []string `json:"recommendations"`
	TimelineAssessment string   `json:"timeline_assessment"`
	ResourceInsights   string   `json:"resource_insights"`
}

// QuickInsights is the dashboard summary requested from the model
type QuickInsights struct {
	RiskScore          int    `json:"risk_score"`
	TimelineConfidence string `json:"timeline_confidence"`
	TopConcern         string `json:"top_concern"`
	QuickWin           string `json:"quick_win"`
	StatusEmoji        string `json:"status_emoji"`
}

// FallbackQuickInsights is returned when quick insights cannot be generated
var FallbackQuickInsights = QuickInsights{
	RiskScore:          5,
	TimelineConfidence: "Medium",
	TopConcern:         "Monitor task dependencies and completion rates",
	QuickWin:           "Focus on highest risk tasks first",
	StatusEmoji:        "⚠️",
}

// Analyzer turns project data into narrative insights using a Generator
type Analyzer struct {
	logger    *zap.Logger
	generator Generator
}

// NewAnalyzer creates a new analyzer. A nil generator makes every analysis
// report ErrNotConfigured.
func NewAnalyzer(generator Generator, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger:    logger.Named("insights"),
		generator: generator,
	}
}

func (a *Analyzer) modelName() string {
	if a.generator == nil {
		return fallbackModelName
	}
	return a.generator.Model()
}

func (a *Analyzer) generate(ctx context.Context, kind, prompt string) (string, error) {
	if a.generator == nil {
		return "", ErrNotConfigured
	}
	text, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		a.logger.Error("Analysis failed", zap.String("kind", kind), zap.Error(err))
		return "", err
	}
	return StripCodeFences(text), nil
}

// AnalyzeRisks asks the model for a risk assessment of the project. Replies
// that are not valid JSON are wrapped into a generic assessment.
func (a *Analyzer) AnalyzeRisks(ctx context.Context, project ProjectData) *Result {
	prompt := fmt.Sprintf(riskAnalysisPrompt, FormatProjectContext(project))

	text, err := a.generate(ctx, "risk_analysis", prompt)
	if err != nil {
		return &Result{Success: false, Error: err.Error(), ModelUsed: a.modelName()}
	}

	if json.Valid([]byte(text)) {
		return &Result{Success: true, Analysis: json.RawMessage(text), ModelUsed: a.modelName()}
	}

	a.logger.Warn("Risk analysis reply is not JSON, using fallback")
	excerpt := text
	if r := []rune(text); len(r) > timelineExcerpt {
		excerpt = string(r[:timelineExcerpt]) + "..."
	}
	fallback, _ := json.Marshal(RiskAnalysis{
		RiskAssessment:     "Analysis generated",
		KeyRisks:           []string{"Check task dependencies", "Monitor high-risk tasks", "Review timeline assumptions"},
		Recommendations:    []string{"Regular status updates", "Risk mitigation planning", "Resource buffer allocation"},
		TimelineAssessment: excerpt,
		ResourceInsights:   "Analysis completed with AI assistance",
	})
	return &Result{Success: true, Analysis: fallback, ModelUsed: a.modelName()}
}

// ExecutiveSummary asks the model for a stakeholder summary. analysisResults
// may carry earlier monte_carlo, sde and pde results.
func (a *Analyzer) ExecutiveSummary(ctx context.Context, project ProjectData, analysisResults map[string]interface{}) *Result {
	prompt := fmt.Sprintf(executiveSummaryPrompt, FormatProjectContext(project), formatAnalysisContext(analysisResults))

	text, err := a.generate(ctx, "executive_summary", prompt)
	if err != nil {
		return &Result{Success: false, Error: err.Error(), ModelUsed: a.modelName()}
	}
	if !json.Valid([]byte(text)) {
		return &Result{Success: false, Error: "model reply is not valid JSON", ModelUsed: a.modelName()}
	}
	return &Result{Success: true, Summary: json.RawMessage(text), ModelUsed: a.modelName()}
}

// QuickInsights asks the model for a short dashboard summary and falls back
// to FallbackQuickInsights on any failure
func (a *Analyzer) QuickInsights(ctx context.Context, project ProjectData) *Result {
	prompt := fmt.Sprintf(quickInsightsPrompt, FormatProjectContext(project))

	fail := func(err error) *Result {
		fallback := FallbackQuickInsights
		return &Result{Success: false, Error: err.Error(), FallbackInsights: &fallback}
	}

	text, err := a.generate(ctx, "quick_insights", prompt)
	if err != nil {
		return fail(err)
	}
	if !json.Valid([]byte(text)) {
		a.logger.Warn("Quick insights reply is not JSON", zap.String("reply", text))
		return fail(fmt.Errorf("model reply is not valid JSON"))
	}
	return &Result{Success: true, Insights: json.RawMessage(text), ModelUsed: a.modelName()}
}

// StripCodeFences removes markdown code fences around a JSON reply
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// FormatProjectContext renders the project summary embedded in every prompt.
// Only the first ten tasks are detailed.
func FormatProjectContext(project ProjectData) string {
	tasks := project.Tasks

	var totalDuration, riskSum float64
	highRisk := 0
	for _, t := range tasks {
		totalDuration += t.DurationDays
		riskSum += float64(t.UserRiskRating)
		if t.UserRiskRating >= highRiskRating {
			highRisk++
		}
	}
	avgRisk := 0.0
	if len(tasks) > 0 {
		avgRisk = riskSum / float64(len(tasks))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", project.Title())
	fmt.Fprintf(&b, "Total Tasks: %d\n", len(tasks))
	fmt.Fprintf(&b, "Total Duration: %s days\n", formatNumber(totalDuration))
	fmt.Fprintf(&b, "Average Risk Rating: %.1f/5\n", avgRisk)
	fmt.Fprintf(&b, "High Risk Tasks: %d\n", highRisk)
	b.WriteString("\nTasks Detail:\n")

	for i, t := range tasks {
		if i == maxContextTasks {
			break
		}
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("Task %d", i+1)
		}
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, name)
		fmt.Fprintf(&b, "   - Duration: %s days\n", formatNumber(t.DurationDays))
		fmt.Fprintf(&b, "   - Risk Level: %d/5\n", t.UserRiskRating)
		fmt.Fprintf(&b, "   - Dependencies: %d tasks\n", len(t.Predecessors))
		fmt.Fprintf(&b, "   - Completion: %s%%\n", formatNumber(t.CompletionPct))
	}

	if len(tasks) > maxContextTasks {
		fmt.Fprintf(&b, "\n... and %d more tasks", len(tasks)-maxContextTasks)
	}
	return b.String()
}

func formatAnalysisContext(results map[string]interface{}) string {
	if len(results) == 0 {
		return ""
	}
	return fmt.Sprintf(`
Previous Analysis Results:
- Monte Carlo Mean Duration: %s days
- SDE Risk Analysis: %s days
- PDE Completion: %s
`,
		lookup(results, "monte_carlo", "mean_duration"),
		lookup(results, "sde", "mean_duration"),
		lookup(results, "pde", "completion_status"))
}

func lookup(results map[string]interface{}, section, key string) string {
	m, ok := results[section].(map[string]interface{})
	if !ok {
		return "N/A"
	}
	switch v := m[key].(type) {
	case nil:
		return "N/A"
	case float64:
		return formatNumber(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

const riskAnalysisPrompt = `
Analyze this project management data and provide insights:

%s

Please provide a JSON response with:
1. "risk_assessment": Overall risk level (Low/Medium/High) with brief reasoning
2. "key_risks": List of 3-4 main risks identified
3. "recommendations": List of 3-4 actionable recommendations
4. "timeline_assessment": Analysis of timeline feasibility
5. "resource_insights": Comments on resource allocation and task distribution

Focus on practical project management insights that would help a PM make better decisions.

Respond only with valid JSON.
`

const executiveSummaryPrompt = `
Create an executive summary for this project:

%s
%s

Generate a JSON response with:
1. "executive_summary": 2-3 sentence high-level status
2. "key_metrics": Important numbers and percentages
3. "action_items": 3-4 immediate actions needed
4. "stakeholder_message": Brief message suitable for executive communication
5. "confidence_level": Your confidence in the timeline (High/Medium/Low)

Write for busy executives who need quick, actionable insights.
Respond with ONLY valid JSON, without markdown formatting or code blocks.
`

const quickInsightsPrompt = `
Provide quick project insights for this data:

%s

Return JSON with:
1. "risk_score": Number 1-10 (10 = highest risk)
2. "timeline_confidence": "High"/"Medium"/"Low"
3. "top_concern": One sentence about biggest risk
4. "quick_win": One actionable recommendation
5. "status_emoji": Single emoji that represents project status

Keep responses concise for dashboard display.

Respond only with valid JSON.
`
