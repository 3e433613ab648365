package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

var errAlertsDisabled = errors.New("alerting is not configured")

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := []*model.Alert{}
	if h.Alerts != nil {
		alerts = append(alerts, h.Alerts.RecentAlerts(queryInt(r, "limit", 20))...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *Handler) handleListAlertRules(w http.ResponseWriter, _ *http.Request) {
	rules := []*model.AlertRule{}
	if h.Alerts != nil {
		rules = append(rules, h.Alerts.Rules()...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (h *Handler) handleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeDetail(w, http.StatusServiceUnavailable, errAlertsDisabled.Error())
		return
	}

	var rule model.AlertRule
	if err := decodeJSON(r, &rule); err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}
	if rule.ID != "" {
		if _, err := h.Alerts.GetRule(rule.ID); err == nil {
			writeDetail(w, http.StatusConflict, "Alert rule already exists")
			return
		}
	}
	if err := h.Alerts.AddRule(&rule); err != nil {
		h.writeError(w, err, "Failed to add alert rule")
		return
	}

	h.logger.Info("Alert rule added", zap.String("rule_id", rule.ID), zap.String("type", string(rule.Type)))
	writeJSON(w, http.StatusCreated, &rule)
}

func (h *Handler) handleGetAlertRule(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeDetail(w, http.StatusServiceUnavailable, errAlertsDisabled.Error())
		return
	}

	rule, err := h.Alerts.GetRule(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load alert rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleUpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeDetail(w, http.StatusServiceUnavailable, errAlertsDisabled.Error())
		return
	}

	var rule model.AlertRule
	if err := decodeJSON(r, &rule); err != nil {
		h.writeError(w, err, "Invalid request")
		return
	}
	rule.ID = r.PathValue("id")
	if err := h.Alerts.UpdateRule(&rule); err != nil {
		h.writeError(w, err, "Failed to update alert rule")
		return
	}

	h.logger.Info("Alert rule updated", zap.String("rule_id", rule.ID))
	writeJSON(w, http.StatusOK, &rule)
}

func (h *Handler) handleDeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeDetail(w, http.StatusServiceUnavailable, errAlertsDisabled.Error())
		return
	}

	id := r.PathValue("id")
	if err := h.Alerts.DeleteRule(id); err != nil {
		h.writeError(w, err, "Failed to delete alert rule")
		return
	}

	h.logger.Info("Alert rule deleted", zap.String("rule_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Alert rule deleted successfully"})
}
