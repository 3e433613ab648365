package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/pulse/internal/insights"
	"github.com/t77yq/pulse/internal/jobs"
	"github.com/t77yq/pulse/internal/maintenance"
	"github.com/t77yq/pulse/internal/model"
	"github.com/t77yq/pulse/internal/monitor"
	"github.com/t77yq/pulse/internal/service"
	"github.com/t77yq/pulse/internal/storage"
)

type stubGenerator struct {
	reply string
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, nil }
func (g *stubGenerator) Model() string                                   { return "stub-model" }

type stubMetrics struct{}

func (stubMetrics) Snapshot() model.HostStats {
	return model.HostStats{CPUUsage: 12.5, MemoryUsage: 40, Goroutines: 8}
}

type stubMaintenance struct{}

func (stubMaintenance) Entries() []maintenance.Entry {
	return []maintenance.Entry{{Name: "history-retention", Expression: "0 0 3 * * *"}}
}

type testEnv struct {
	handler *Handler
	server  http.Handler
	alerts  *monitor.AlertManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := storage.Open(context.Background(), storage.DialectSQLite, filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	history := storage.NewCalculationHistory(db)

	runner := jobs.NewRunner(jobs.NewStore(100, time.Minute), jobs.RunnerConfig{Workers: 2, QueueSize: 10}, logger)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	alerts := monitor.NewAlertManager(logger)
	require.NoError(t, alerts.AddRule(&model.AlertRule{
		ID:        "high-risk",
		Name:      "High risk tasks",
		Type:      model.AlertTypeHighRiskTasks,
		Threshold: 1,
	}))

	h := NewHandler(Dependencies{
		Calculator: service.NewCalculator(logger, service.WithHistory(history), service.WithAlerts(alerts)),
		Runner:     runner,
		Analyzer:   insights.NewAnalyzer(&stubGenerator{reply: "```json\n{\"risk_score\": 3}\n```"}, logger),
		Projects:   storage.NewProjectStore(db),
		History:    history,
		Metrics:    stubMetrics{},
		Alerts:     alerts,

		Maintenance: stubMaintenance{},
	}, logger)
	h.testJobDelay = 10 * time.Millisecond

	srv := NewServer(ServerConfig{Addr: ":0", AllowedOrigins: []string{"http://localhost:3000"}}, h, logger)
	return &testEnv{handler: h, server: srv.Handler(), alerts: alerts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const diamondProject = `{
	"project_name": "Website",
	"project_start_date": "2024-11-01",
	"tasks": [
		{"id": 1, "name": "Design", "duration_days": 2, "predecessors": [], "user_risk_rating": 1},
		{"id": 2, "name": "Build", "duration_days": 5, "predecessors": [1], "user_risk_rating": 4.7},
		{"id": "3", "name": "Docs", "duration_days": 1, "predecessors": ["1"], "user_risk_rating": 2},
		{"id": "4", "name": "Ship", "predecessors": ["2", "3"]}
	]
}`

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "AnisPulse Demo API", body["message"])
	assert.Equal(t, "1.0.0", body["version"])

	rec = env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "foundation_ready", body["engine"])
	host := body["host"].(map[string]interface{})
	assert.Equal(t, 12.5, host["cpu_usage"])
	entries := body["maintenance"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "history-retention", entries[0].(map[string]interface{})["name"])

	rec = env.do(t, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculateProject(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/calculate-project", diamondProject)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report service.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, "Website", report.ProjectName)
	assert.Equal(t, "baseline", report.AnalysisMode)
	assert.Equal(t, 8.0, report.ProjectMetrics.TotalDurationDays)
	assert.Equal(t, []string{"1", "2", "4"}, report.ProjectMetrics.CriticalPathIDs)
	assert.Equal(t, 4, report.ProjectMetrics.TotalTasks)

	build := report.Tasks[1]
	assert.Equal(t, []string{"1"}, build.Predecessors)
	assert.Equal(t, "High", build.RiskLevel)
	assert.Equal(t, 95.0, build.RiskScore)
	assert.Equal(t, "2024-11-03", build.ActualStartDate)

	ship := report.Tasks[3]
	assert.Equal(t, 1.0, ship.DurationDays)
	assert.Equal(t, 7.0, ship.ScheduledStartDay)

	assert.Len(t, env.alerts.RecentAlerts(0), 1)

	rec = env.do(t, http.MethodGet, "/api/calculations?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 1.0, body["total"])
	assert.Len(t, body["calculations"], 1)
}

func TestCalculateProject_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"missing tasks", `{"project_name": "x"}`, "Missing 'tasks' in request"},
		{"empty tasks", `{"tasks": []}`, "Tasks list cannot be empty"},
		{"missing id", `{"tasks": [{"name": "a"}]}`, "Invalid task data"},
		{"bad json", `{"tasks": [`, "Invalid JSON body"},
		{"unknown mode", `{"mode": "forecast", "tasks": [{"id": 1, "name": "a"}]}`, "unknown mode"},
		{"bad date", `{"project_start_date": "tomorrow", "tasks": [{"id": 1, "name": "a"}]}`, "project_start_date"},
		{"negative duration", `{"tasks": [{"id": 1, "name": "a", "duration_days": -2}]}`, "duration_days"},
		{"cycle", `{"tasks": [{"id": "a", "name": "a", "predecessors": ["b"]}, {"id": "b", "name": "b", "predecessors": ["a"]}]}`, "circular dependency"},
		{"unknown predecessor", `{"tasks": [{"id": "a", "name": "a", "predecessors": ["z"]}]}`, "z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/calculate-project", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Contains(t, body["detail"], tt.detail)
		})
	}
}

func TestCalculateProject_CurrentStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/calculate-project", `{
		"mode": "current_status",
		"tasks": [
			{"id": "1", "name": "Half", "duration_days": 10, "completion_pct": 50},
			{"id": "2", "name": "Next", "duration_days": 2, "predecessors": ["1"]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report service.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 7.0, report.ProjectMetrics.TotalDurationDays)
	assert.Nil(t, report.ProjectStartDate)
	assert.Empty(t, report.Tasks[0].ActualStartDate)
}

func waitForJob(t *testing.T, env *testEnv, path string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			return false
		}
		body = decodeBody(t, rec)
		status := model.JobStatus(body["status"].(string))
		return status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return body
}

func TestCalculationJob(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/jobs/calculate", diamondProject)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	submitted := decodeBody(t, rec)
	assert.Equal(t, "processing", submitted["status"])

	job := waitForJob(t, env, "/api/jobs/"+submitted["job_id"].(string))
	assert.Equal(t, "completed", job["status"])
	result := job["result"].(map[string]interface{})
	metrics := result["project_metrics"].(map[string]interface{})
	assert.Equal(t, 8.0, metrics["total_duration_days"])

	rec = env.do(t, http.MethodGet, "/api/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/jobs/calculate", `{"tasks": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackgroundJobs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/test-background", "")
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decodeBody(t, rec)

	job := waitForJob(t, env, "/api/sde-status/"+submitted["job_id"].(string))
	assert.Equal(t, "completed", job["status"])
	assert.Equal(t, "Working...", job["progress"])
	assert.Equal(t, map[string]interface{}{"message": "Background task success!"}, job["result"])

	rec = env.do(t, http.MethodPost, "/api/sde-analysis", `{"tasks": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	submitted = decodeBody(t, rec)
	job = waitForJob(t, env, "/api/sde-status/"+submitted["job_id"].(string))
	result := job["result"].(map[string]interface{})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "Advanced SDE analysis available in full version", result["message"])

	rec = env.do(t, http.MethodGet, "/api/sde-status/nope", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["status"])
}

func TestJobsReportProcessingUntilDone(t *testing.T) {
	env := newTestEnv(t)
	env.handler.testJobDelay = time.Minute

	rec := env.do(t, http.MethodPost, "/api/test-background", "")
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decodeBody(t, rec)
	assert.Equal(t, "processing", submitted["status"])
	id := submitted["job_id"].(string)

	rec = env.do(t, http.MethodGet, "/api/sde-status/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/jobs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodPost, "/api/sde-analysis", "{}")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 2.0, body["total"])

	rec = env.do(t, http.MethodGet, "/api/jobs?kind=test_background", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	listed := body["jobs"].([]interface{})
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0].(map[string]interface{})["job_id"])
}

func TestUnavailableAnalyses(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path, message string }{
		{http.MethodPost, "/api/enhanced-pde-analysis", "Advanced PDE analysis available in full version"},
		{http.MethodGet, "/api/pde-parameters/defaults", "Advanced PDE analysis available in full version"},
		{http.MethodPost, "/api/monte-carlo-analysis", "Advanced Monte Carlo analysis available in full version"},
	} {
		rec := env.do(t, tc.method, tc.path, "{}")
		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.message, body["message"])
	}
}

func TestProjects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/projects", `{"name": "Alpha", "tasks": [{"id": 1, "name": "a", "duration_days": 2}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody(t, rec)
	assert.Equal(t, true, saved["success"])
	alphaID := saved["id"].(string)
	assert.NotEmpty(t, alphaID)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	env.handler.now = func() time.Time { return base.Add(time.Hour) }
	rec = env.do(t, http.MethodPost, "/api/projects", `{"id": "beta", "name": "Beta", "tasks": [], "foundationResults": {"tasks": []}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "beta", decodeBody(t, rec)["id"])

	rec = env.do(t, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decodeBody(t, rec)["projects"].([]interface{})
	require.Len(t, projects, 2)
	assert.Equal(t, alphaID, projects[0].(map[string]interface{})["id"])

	rec = env.do(t, http.MethodGet, "/api/projects/beta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Beta", decodeBody(t, rec)["name"])

	rec = env.do(t, http.MethodDelete, "/api/projects/beta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodDelete, "/api/projects/beta", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Project not found", decodeBody(t, rec)["detail"])

	rec = env.do(t, http.MethodPost, "/api/projects", `{"name": "No tasks"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decodeBody(t, rec)["detail"])

	rec = env.do(t, http.MethodPost, "/api/projects", `{"name": "Bad", "tasks": [{"id": 1, "name": "a", "completion_pct": 140}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "Validation error")
}

func TestInsights(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/gemini-quick-insights", `{"name": "Alpha", "tasks": [{"id": 1, "name": "a"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "stub-model", body["model_used"])
	assert.Equal(t, map[string]interface{}{"risk_score": 3.0}, body["insights"])

	rec = env.do(t, http.MethodPost, "/api/gemini-executive-summary", `{"project_data": {"project_name": "Alpha", "tasks": []}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestInsights_NotConfigured(t *testing.T) {
	logger := zaptest.NewLogger(t)
	runner := jobs.NewRunner(jobs.NewStore(10, time.Minute), jobs.RunnerConfig{Workers: 1}, logger)
	h := NewHandler(Dependencies{Runner: runner}, logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gemini-risk-analysis", bytes.NewBufferString(`{"tasks": []}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, insights.ErrNotConfigured.Error(), body["error"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gemini-quick-insights", bytes.NewBufferString(`{"tasks": []}`)))
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotNil(t, body["fallback_insights"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAlertsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/alert-rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rules := decodeBody(t, rec)["rules"].([]interface{})
	require.Len(t, rules, 1)

	rec = env.do(t, http.MethodPost, "/api/calculate-project", diamondProject)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeBody(t, rec)["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high-risk", alerts[0].(map[string]interface{})["rule_id"])
}

func TestAlertRuleCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/alert-rules",
		`{"id": "long", "name": "Long project", "type": "duration", "threshold": 30, "severity": "warning"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "long", decodeBody(t, rec)["id"])

	rec = env.do(t, http.MethodPost, "/api/alert-rules", `{"id": "long", "name": "Again", "type": "duration"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/alert-rules", `{"name": "Bad", "type": "weather"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alert-rules/long", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30.0, decodeBody(t, rec)["threshold"])

	rec = env.do(t, http.MethodPut, "/api/alert-rules/long",
		`{"name": "Long project", "type": "duration", "threshold": 5, "severity": "critical"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rule, err := env.alerts.GetRule("long")
	require.NoError(t, err)
	assert.Equal(t, 5.0, rule.Threshold)
	assert.Equal(t, model.AlertSeverityCritical, rule.Severity)

	// The updated threshold applies to the next calculation
	rec = env.do(t, http.MethodPost, "/api/calculate-project", diamondProject)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/alerts", "")
	fired := map[string]bool{}
	for _, a := range decodeBody(t, rec)["alerts"].([]interface{}) {
		fired[a.(map[string]interface{})["rule_id"].(string)] = true
	}
	assert.True(t, fired["long"])

	rec = env.do(t, http.MethodPut, "/api/alert-rules/missing", `{"name": "x", "type": "duration"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Alert rule not found", decodeBody(t, rec)["detail"])

	rec = env.do(t, http.MethodDelete, "/api/alert-rules/long", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alert-rules/long", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/alert-rules/long", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/calculate-project", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
