package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/t77yq/pulse/internal/jobs"
	"github.com/t77yq/pulse/internal/model"
)

const (
	jobKindCalculation    = "calculation"
	jobKindSDE            = "sde_analysis"
	jobKindTestBackground = "test_background"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeCalculation(r.Body)
	if err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}

	report, err := h.Calculator.Calculate(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "Internal server error during calculation")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleSubmitCalculation(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeCalculation(r.Body)
	if err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}

	job, err := h.Runner.Submit(jobKindCalculation, func(ctx context.Context, progress func(string)) (interface{}, error) {
		progress("Calculating schedule...")
		return h.Calculator.Calculate(ctx, req)
	})
	if err != nil {
		h.writeError(w, err, "Failed to submit calculation")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list := h.Runner.List()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := list[:0]
		for _, job := range list {
			if job.Kind == kind {
				filtered = append(filtered, job)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"total": len(list),
	})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Runner.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleSDEAnalysis(w http.ResponseWriter, _ *http.Request) {
	job, err := h.Runner.Submit(jobKindSDE, func(context.Context, func(string)) (interface{}, error) {
		return unavailable("SDE"), nil
	})
	if err != nil {
		h.writeError(w, err, "Failed to submit analysis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) handleSDEStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.Runner.Get(r.PathValue("id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": model.JobStatusNotFound})
		return
	}
	if err != nil {
		h.writeError(w, err, "Failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleTestBackground(w http.ResponseWriter, _ *http.Request) {
	delay := h.testJobDelay
	job, err := h.Runner.Submit(jobKindTestBackground, func(ctx context.Context, progress func(string)) (interface{}, error) {
		progress("Starting test...")
		progress("Working...")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]string{"message": "Background task success!"}, nil
	})
	if err != nil {
		h.writeError(w, err, "Failed to submit test job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	records := []*model.CalculationRecord{}
	total := 0
	if h.History != nil {
		project := r.URL.Query().Get("project")
		limit := queryInt(r, "limit", defaultHistoryLimit)
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		offset := queryInt(r, "offset", 0)

		list, err := h.History.List(r.Context(), project, offset, limit)
		if err != nil {
			h.writeError(w, err, "Failed to list calculations")
			return
		}
		count, err := h.History.Count(r.Context(), project)
		if err != nil {
			h.writeError(w, err, "Failed to count calculations")
			return
		}
		records = append(records, list...)
		total = count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calculations": records,
		"total":        total,
	})
}

// queryInt reads a non-negative integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}
