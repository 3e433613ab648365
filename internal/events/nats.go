package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

const operationTimeout = 30 * time.Second

// Connect connects to the NATS server at url and returns a JetStream context
func Connect(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url,
		nats.Name("pulse"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.MaxWait(5 * time.Second))
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// NATSPublisher publishes project events to JetStream
type NATSPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewNATSPublisher creates a publisher and ensures the project stream exists
func NewNATSPublisher(js nats.JetStreamContext, logger *zap.Logger) (*NATSPublisher, error) {
	p := &NATSPublisher{
		js:     js,
		logger: logger.Named("events"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := p.setupStream(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}
	return p, nil
}

func (p *NATSPublisher) setupStream(ctx context.Context) error {
	info, err := p.js.StreamInfo(StreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if info != nil {
		config := info.Config
		config.Subjects = []string{streamSubjects}
		config.MaxAge = streamMaxAge
		if _, err := p.js.UpdateStream(&config, nats.Context(ctx)); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", StreamName, err)
		}
		p.logger.Info("Updated stream", zap.String("stream", StreamName))
		return nil
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{streamSubjects},
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     streamMaxAge,
		MaxMsgs:    streamMaxMsgs,
		Discard:    nats.DiscardOld,
		Duplicates: time.Hour,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	p.logger.Info("Stream created successfully", zap.String("stream", StreamName))
	return nil
}

// PublishCalculated implements Publisher.PublishCalculated
func (p *NATSPublisher) PublishCalculated(ctx context.Context, event *CalculatedEvent) error {
	return p.publish(ctx, SubjectCalculated, event.CalculationID, event)
}

// PublishAlert implements Publisher.PublishAlert
func (p *NATSPublisher) PublishAlert(ctx context.Context, alert *model.Alert) error {
	return p.publish(ctx, SubjectAlert, alert.ID, alert)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, msgID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}

	if _, err := p.js.Publish(subject, data, opts...); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("subject", subject),
			zap.String("msg_id", msgID),
			zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("Event published",
		zap.String("subject", subject),
		zap.String("msg_id", msgID))
	return nil
}

// Subscribe delivers every new project event to handler until ctx is done
func (p *NATSPublisher) Subscribe(ctx context.Context, handler func(subject string, data []byte)) error {
	sub, err := p.js.Subscribe(streamSubjects, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
		if err := msg.Ack(); err != nil {
			p.logger.Warn("Failed to acknowledge event", zap.Error(err))
		}
	}, nats.DeliverNew(), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", streamSubjects, err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return nil
}

var _ Publisher = (*NATSPublisher)(nil)
