package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/api"
	"github.com/t77yq/pulse/internal/config"
	"github.com/t77yq/pulse/internal/events"
	"github.com/t77yq/pulse/internal/insights"
	"github.com/t77yq/pulse/internal/jobs"
	"github.com/t77yq/pulse/internal/maintenance"
	"github.com/t77yq/pulse/internal/monitor"
	"github.com/t77yq/pulse/internal/service"
	"github.com/t77yq/pulse/internal/storage"
)

const maintenanceTimeout = 5 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := storage.Open(ctx, storage.Dialect(cfg.Database.Dialect), cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	projects := storage.NewProjectStore(db)
	history := storage.NewCalculationHistory(db)

	var archive storage.Archive
	if cfg.Archive.Enabled {
		s3, err := storage.NewS3Archive(storage.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create report archive: %w", err)
		}
		archive = s3
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		nc, js, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer drain(nc, logger)

		natsPublisher, err := events.NewNATSPublisher(js, logger)
		if err != nil {
			return err
		}
		publisher = natsPublisher
		if err := natsPublisher.Subscribe(ctx, events.LogHandler(logger)); err != nil {
			return err
		}
		logger.Info("Publishing project events", zap.String("url", nc.ConnectedUrl()))
	}

	alerts := monitor.NewAlertManager(logger)
	alerts.AddChannel("events", monitor.NewEventChannel(publisher))
	alerts.AddChannel("webhook", monitor.NewWebhookChannel(cfg.Monitor.WebhookTimeout, logger))
	for i := range cfg.Alerts {
		rule := cfg.Alerts[i]
		if err := alerts.AddRule(&rule); err != nil {
			return fmt.Errorf("failed to add alert rule %q: %w", rule.Name, err)
		}
	}

	metrics := monitor.NewMetricsCollector(cfg.Monitor.Interval, logger)
	if err := metrics.Start(ctx); err != nil {
		logger.Warn("Host metrics unavailable", zap.Error(err))
	}
	defer metrics.Stop()

	store := jobs.NewStore(cfg.Jobs.Capacity, cfg.Jobs.TTL)
	runner := jobs.NewRunner(store, jobs.RunnerConfig{
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
	}, logger)
	runner.Start(ctx)
	defer runner.Stop()

	var schedule api.MaintenanceEntries
	if cfg.Maintenance.Enabled {
		scheduler := maintenance.NewScheduler(logger)
		if err := scheduler.AddTask("history-retention", cfg.Maintenance.HistorySchedule, maintenanceTimeout,
			maintenance.HistoryRetention(history, cfg.Database.HistoryRetention)); err != nil {
			return err
		}
		if err := scheduler.AddTask("job-purge", cfg.Maintenance.JobSchedule, maintenanceTimeout,
			maintenance.JobPurge(store, cfg.Jobs.Retention, logger)); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		schedule = scheduler
	}

	analyzer := newAnalyzer(ctx, cfg, logger)

	calculator := service.NewCalculator(logger,
		service.WithHistory(history),
		service.WithPublisher(publisher),
		service.WithAlerts(alerts),
	)

	handler := api.NewHandler(api.Dependencies{
		Calculator: calculator,
		Runner:     runner,
		Analyzer:   analyzer,
		Projects:   projects,
		History:    history,
		Archive:    archive,
		Metrics:    metrics,
		Alerts:     alerts,

		Maintenance: schedule,
	}, logger)

	server := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	logger.Info("Server shutting down gracefully")
	return nil
}

// newAnalyzer builds the insight analyzer. Without an API key the analyzer
// still answers, reporting that AI insights are not configured.
func newAnalyzer(ctx context.Context, cfg *config.Config, logger *zap.Logger) *insights.Analyzer {
	generator, err := insights.NewGeminiGenerator(ctx, insights.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		MaxAttempts: cfg.Gemini.MaxAttempts,
		Timeout:     cfg.Gemini.Timeout,
	}, logger)
	if err != nil {
		if errors.Is(err, insights.ErrNotConfigured) {
			logger.Info("Gemini insights disabled: no API key")
		} else {
			logger.Warn("Gemini insights unavailable", zap.Error(err))
		}
		return insights.NewAnalyzer(nil, logger)
	}
	return insights.NewAnalyzer(generator, logger)
}

func drain(nc *nats.Conn, logger *zap.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", zap.Error(err))
	}
}
