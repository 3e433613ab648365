package api

import (
	"net/http"

	"github.com/t77yq/pulse/internal/insights"
)

// The insight routes always answer 200; failures are reported in the body
// the same way a failed model call is.

func (h *Handler) handleRiskAnalysis(w http.ResponseWriter, r *http.Request) {
	var body insightsProject
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusOK, insights.Result{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.Analyzer.AnalyzeRisks(r.Context(), body.toProjectData()))
}

func (h *Handler) handleExecutiveSummary(w http.ResponseWriter, r *http.Request) {
	var body executiveSummaryRequest
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusOK, insights.Result{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.Analyzer.ExecutiveSummary(r.Context(), body.ProjectData.toProjectData(), body.AnalysisResults))
}

func (h *Handler) handleQuickInsights(w http.ResponseWriter, r *http.Request) {
	var body insightsProject
	if err := decodeJSON(r, &body); err != nil {
		fallback := insights.FallbackQuickInsights
		writeJSON(w, http.StatusOK, insights.Result{Success: false, Error: err.Error(), FallbackInsights: &fallback})
		return
	}
	writeJSON(w, http.StatusOK, h.Analyzer.QuickInsights(r.Context(), body.toProjectData()))
}
