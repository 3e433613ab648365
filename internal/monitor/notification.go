package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/events"
	"github.com/t77yq/pulse/internal/model"
)

// NotificationChannel represents a channel for sending alert notifications
type NotificationChannel interface {
	Send(ctx context.Context, rule *model.AlertRule, alert *model.Alert) error
}

// EventChannel forwards alerts to the project event stream
type EventChannel struct {
	publisher events.Publisher
}

// NewEventChannel creates a channel publishing alerts as events
func NewEventChannel(publisher events.Publisher) *EventChannel {
	return &EventChannel{publisher: publisher}
}

// Send implements NotificationChannel.Send
func (c *EventChannel) Send(ctx context.Context, _ *model.AlertRule, alert *model.Alert) error {
	return c.publisher.PublishAlert(ctx, alert)
}

// WebhookChannel posts alerts as JSON to the rule's notify URL
type WebhookChannel struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// NewWebhookChannel creates a new webhook channel
func NewWebhookChannel(timeout time.Duration, logger *zap.Logger) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		logger: logger.Named("webhook"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send implements NotificationChannel.Send. Rules without a notify URL are skipped.
func (c *WebhookChannel) Send(ctx context.Context, rule *model.AlertRule, alert *model.Alert) error {
	if rule.NotifyURL == "" {
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.NotifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Sending alert webhook",
		zap.String("alert_id", alert.ID),
		zap.String("url", rule.NotifyURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}
	return nil
}

var (
	_ NotificationChannel = (*EventChannel)(nil)
	_ NotificationChannel = (*WebhookChannel)(nil)
)
