package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/insights"
	"github.com/t77yq/pulse/internal/jobs"
	"github.com/t77yq/pulse/internal/maintenance"
	"github.com/t77yq/pulse/internal/model"
	"github.com/t77yq/pulse/internal/monitor"
	"github.com/t77yq/pulse/internal/service"
	"github.com/t77yq/pulse/internal/storage"
)

const (
	serviceName    = "AnisPulse Demo API"
	serviceVersion = "1.0.0"

	defaultTestJobDelay = 3 * time.Second
)

// HostStats provides the latest host resource sample
type HostStats interface {
	Snapshot() model.HostStats
}

// MaintenanceEntries lists the registered maintenance tasks
type MaintenanceEntries interface {
	Entries() []maintenance.Entry
}

// Dependencies are the collaborators of the HTTP handler. Runner is
// required. Everything else may be nil and the routes that need it degrade.
type Dependencies struct {
	Calculator *service.Calculator
	Runner     *jobs.Runner
	Analyzer   *insights.Analyzer
	Projects   storage.ProjectStore
	History    storage.CalculationHistory
	Archive    storage.Archive
	Metrics    HostStats
	Alerts     *monitor.AlertManager

	Maintenance MaintenanceEntries
}

// Handler serves the pulse HTTP API
type Handler struct {
	Dependencies

	logger       *zap.Logger
	mux          *http.ServeMux
	testJobDelay time.Duration
	now          func() time.Time
}

// NewHandler creates a new handler and registers its routes
func NewHandler(deps Dependencies, logger *zap.Logger) *Handler {
	h := &Handler{
		Dependencies: deps,
		logger:       logger.Named("api"),
		mux:          http.NewServeMux(),
		testJobDelay: defaultTestJobDelay,
		now:          time.Now,
	}
	if h.Calculator == nil {
		h.Calculator = service.NewCalculator(logger)
	}
	if h.Analyzer == nil {
		h.Analyzer = insights.NewAnalyzer(nil, logger)
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /api/calculate-project", h.handleCalculate)
	h.mux.HandleFunc("GET /api/calculations", h.handleListCalculations)
	h.mux.HandleFunc("POST /api/jobs/calculate", h.handleSubmitCalculation)
	h.mux.HandleFunc("GET /api/jobs", h.handleListJobs)
	h.mux.HandleFunc("GET /api/jobs/{id}", h.handleGetJob)

	h.mux.HandleFunc("POST /api/enhanced-pde-analysis", h.handleUnavailable("PDE"))
	h.mux.HandleFunc("GET /api/pde-parameters/defaults", h.handleUnavailable("PDE"))
	h.mux.HandleFunc("POST /api/monte-carlo-analysis", h.handleUnavailable("Monte Carlo"))
	h.mux.HandleFunc("POST /api/sde-analysis", h.handleSDEAnalysis)
	h.mux.HandleFunc("GET /api/sde-status/{id}", h.handleSDEStatus)
	h.mux.HandleFunc("POST /api/test-background", h.handleTestBackground)

	h.mux.HandleFunc("POST /api/projects", h.handleSaveProject)
	h.mux.HandleFunc("GET /api/projects", h.handleListProjects)
	h.mux.HandleFunc("GET /api/projects/{id}", h.handleGetProject)
	h.mux.HandleFunc("DELETE /api/projects/{id}", h.handleDeleteProject)
	h.mux.HandleFunc("GET /api/projects/{id}/reports", h.handleListReports)

	h.mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	h.mux.HandleFunc("GET /api/alert-rules", h.handleListAlertRules)
	h.mux.HandleFunc("POST /api/alert-rules", h.handleCreateAlertRule)
	h.mux.HandleFunc("GET /api/alert-rules/{id}", h.handleGetAlertRule)
	h.mux.HandleFunc("PUT /api/alert-rules/{id}", h.handleUpdateAlertRule)
	h.mux.HandleFunc("DELETE /api/alert-rules/{id}", h.handleDeleteAlertRule)

	h.mux.HandleFunc("POST /api/gemini-risk-analysis", h.handleRiskAnalysis)
	h.mux.HandleFunc("POST /api/gemini-executive-summary", h.handleExecutiveSummary)
	h.mux.HandleFunc("POST /api/gemini-quick-insights", h.handleQuickInsights)
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       serviceName,
		"version":       serviceVersion,
		"documentation": "/health",
		"contact":       "Available for technical discussions",
		"note":          "Deterministic CPM scheduling and risk analysis. Probabilistic analyses are not included.",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status": "healthy",
		"engine": "foundation_ready",
		"endpoints": []string{
			"/",
			"/health",
			"/api/calculate-project",
			"/api/jobs/calculate",
			"/api/projects",
			"/api/calculations",
		},
	}
	if h.Metrics != nil {
		body["host"] = h.Metrics.Snapshot()
	}
	if h.Maintenance != nil {
		body["maintenance"] = h.Maintenance.Entries()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleUnavailable answers the probabilistic analyses, which this service
// does not implement
func (h *Handler) handleUnavailable(analysis string) http.HandlerFunc {
	body := unavailable(analysis)
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func unavailable(analysis string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": "Advanced " + analysis + " analysis available in full version",
	}
}
