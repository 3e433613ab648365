package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/engine"
	"github.com/t77yq/pulse/internal/model"
)

const maxRecentAlerts = 100

var (
	// ErrRuleNotFound is returned when an alert rule does not exist
	ErrRuleNotFound = errors.New("alert rule not found")

	// ErrInvalidRule is returned when an alert rule cannot be evaluated
	ErrInvalidRule = errors.New("invalid alert rule")
)

// AlertManager evaluates alert rules against calculation results and sends
// the resulting alerts through its notification channels
type AlertManager struct {
	logger   *zap.Logger
	rules    sync.Map
	channels map[string]NotificationChannel

	mu     sync.Mutex
	recent []*model.Alert
}

// NewAlertManager creates a new alert manager
func NewAlertManager(logger *zap.Logger) *AlertManager {
	return &AlertManager{
		logger:   logger.Named("alert-manager"),
		channels: make(map[string]NotificationChannel),
	}
}

// AddChannel registers a notification channel. Channels must be added before
// the manager is used concurrently.
func (m *AlertManager) AddChannel(name string, ch NotificationChannel) {
	m.channels[name] = ch
}

// GetRule returns a rule by ID
func (m *AlertManager) GetRule(id string) (*model.AlertRule, error) {
	value, ok := m.rules.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return value.(*model.AlertRule), nil
}

// Rules returns all rules ordered by name
func (m *AlertManager) Rules() []*model.AlertRule {
	var rules []*model.AlertRule
	m.rules.Range(func(_, value interface{}) bool {
		rules = append(rules, value.(*model.AlertRule))
		return true
	})
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// AddRule adds a new alert rule
func (m *AlertManager) AddRule(rule *model.AlertRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	m.rules.Store(rule.ID, rule)
	return nil
}

// UpdateRule updates an existing alert rule
func (m *AlertManager) UpdateRule(rule *model.AlertRule) error {
	existing, ok := m.rules.Load(rule.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	rule.CreatedAt = existing.(*model.AlertRule).CreatedAt
	rule.UpdatedAt = time.Now()
	m.rules.Store(rule.ID, rule)
	return nil
}

// DeleteRule deletes an alert rule
func (m *AlertManager) DeleteRule(id string) error {
	if _, ok := m.rules.Load(id); !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	m.rules.Delete(id)
	return nil
}

func validateRule(rule *model.AlertRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	switch rule.Type {
	case model.AlertTypeHighRiskTasks, model.AlertTypeDuration, model.AlertTypeOverallRisk:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, rule.Type)
	}
	if rule.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidRule)
	}
	if rule.Severity == "" {
		rule.Severity = model.AlertSeverityWarning
	}
	return nil
}

// Evaluate checks every active rule against a calculation result, notifies
// the channels of each fired alert and returns the fired alerts
func (m *AlertManager) Evaluate(ctx context.Context, projectName string, result *engine.ProjectResult) []*model.Alert {
	var fired []*model.Alert

	for _, rule := range m.Rules() {
		if rule.Silenced {
			continue
		}

		message, data, ok := checkRule(rule, result)
		if !ok {
			continue
		}

		alert := &model.Alert{
			ID:          uuid.New().String(),
			RuleID:      rule.ID,
			Type:        rule.Type,
			Severity:    rule.Severity,
			ProjectName: projectName,
			Message:     fmt.Sprintf("%s: %s", rule.Name, message),
			Data:        data,
			CreatedAt:   time.Now().UTC(),
		}
		m.record(alert)
		m.notify(ctx, rule, alert)
		fired = append(fired, alert)

		m.logger.Info("Alert created",
			zap.String("id", alert.ID),
			zap.String("rule_id", alert.RuleID),
			zap.String("type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
			zap.String("project", projectName))
	}

	return fired
}

func checkRule(rule *model.AlertRule, result *engine.ProjectResult) (string, map[string]interface{}, bool) {
	switch rule.Type {
	case model.AlertTypeHighRiskTasks:
		if float64(result.HighRiskTaskCount) < rule.Threshold || result.HighRiskTaskCount == 0 {
			return "", nil, false
		}
		var ids []string
		for _, t := range result.Tasks {
			if t.RiskLevel == engine.RiskLevelHigh {
				ids = append(ids, t.ID)
			}
		}
		return fmt.Sprintf("%d high risk tasks", result.HighRiskTaskCount),
			map[string]interface{}{"high_risk_task_count": result.HighRiskTaskCount, "task_ids": ids}, true

	case model.AlertTypeDuration:
		if result.TotalDurationDays <= rule.Threshold {
			return "", nil, false
		}
		return fmt.Sprintf("project duration %.1f days exceeds %.1f", result.TotalDurationDays, rule.Threshold),
			map[string]interface{}{"total_duration_days": result.TotalDurationDays, "threshold": rule.Threshold}, true

	case model.AlertTypeOverallRisk:
		if result.OverallRiskLevel != engine.RiskLevelHigh {
			return "", nil, false
		}
		return "overall risk level is High",
			map[string]interface{}{"overall_risk_level": string(result.OverallRiskLevel), "critical_path_ids": result.CriticalPathIDs}, true
	}
	return "", nil, false
}

func (m *AlertManager) notify(ctx context.Context, rule *model.AlertRule, alert *model.Alert) {
	for name, ch := range m.channels {
		if err := ch.Send(ctx, rule, alert); err != nil {
			m.logger.Error("Failed to send alert notification",
				zap.String("channel", name),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}
}

func (m *AlertManager) record(alert *model.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = append(m.recent, alert)
	if len(m.recent) > maxRecentAlerts {
		m.recent = m.recent[len(m.recent)-maxRecentAlerts:]
	}
}

// RecentAlerts returns up to limit fired alerts, newest first
func (m *AlertManager) RecentAlerts(limit int) []*model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	alerts := make([]*model.Alert, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(alerts) < limit; i-- {
		alerts = append(alerts, m.recent[i])
	}
	return alerts
}
