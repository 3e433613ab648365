package events

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

// LogHandler returns a subscription handler writing every project event to
// logger. Alerts are logged at warn level with their rule and message.
func LogHandler(logger *zap.Logger) func(subject string, data []byte) {
	logger = logger.Named("event-log")
	return func(subject string, data []byte) {
		switch subject {
		case SubjectAlert:
			var alert model.Alert
			if err := json.Unmarshal(data, &alert); err != nil {
				logger.Error("Failed to decode alert event", zap.Error(err))
				return
			}
			logger.Warn("Alert fired",
				zap.String("rule_id", alert.RuleID),
				zap.String("severity", string(alert.Severity)),
				zap.String("project", alert.ProjectName),
				zap.String("message", alert.Message))
		case SubjectCalculated:
			var event CalculatedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				logger.Error("Failed to decode calculation event", zap.Error(err))
				return
			}
			logger.Info("Project calculated",
				zap.String("calculation_id", event.CalculationID),
				zap.String("project", event.ProjectName),
				zap.Float64("total_duration_days", event.TotalDurationDays),
				zap.String("overall_risk", event.OverallRiskLevel))
		default:
			logger.Debug("Project event", zap.String("subject", subject), zap.Int("size", len(data)))
		}
	}
}
