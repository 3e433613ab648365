package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

const maxProjects = 100

var errProjectsDisabled = errors.New("project storage is not configured")

func (h *Handler) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	if h.Projects == nil {
		writeDetail(w, http.StatusServiceUnavailable, errProjectsDisabled.Error())
		return
	}

	var body projectRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}
	project, err := body.toProject()
	if err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	project.LastModified = h.now().UTC()

	if err := h.Projects.Save(r.Context(), project); err != nil {
		h.writeError(w, err, "Failed to save project")
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"id":      project.ID,
	}

	if h.Archive != nil && len(project.FoundationResults) > 0 {
		key, err := h.Archive.Put(r.Context(), project.ID, project.FoundationResults)
		if err != nil {
			h.logger.Warn("Failed to archive project results",
				zap.String("project_id", project.ID),
				zap.Error(err))
		} else {
			resp["archive_key"] = key
		}
	}

	h.logger.Info("Project saved",
		zap.String("project_id", project.ID),
		zap.Int("tasks", len(project.Tasks)))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if h.Projects == nil {
		writeDetail(w, http.StatusServiceUnavailable, errProjectsDisabled.Error())
		return
	}

	projects, err := h.Projects.List(r.Context(), maxProjects)
	if err != nil {
		h.writeError(w, err, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if h.Projects == nil {
		writeDetail(w, http.StatusServiceUnavailable, errProjectsDisabled.Error())
		return
	}

	project, err := h.Projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if h.Projects == nil {
		writeDetail(w, http.StatusServiceUnavailable, errProjectsDisabled.Error())
		return
	}

	if err := h.Projects.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err, "Failed to delete project")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully"})
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	keys := []string{}
	if h.Archive != nil {
		list, err := h.Archive.List(r.Context(), r.PathValue("id"))
		if err != nil {
			h.writeError(w, err, "Failed to list reports")
			return
		}
		keys = append(keys, list...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": keys})
}
