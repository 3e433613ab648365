package monitor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

// MetricsCollector samples host resource usage on an interval
type MetricsCollector struct {
	logger   *zap.Logger
	interval time.Duration
	window   time.Duration
	mu       sync.RWMutex
	latest   model.HostStats
	stop     chan struct{}
	once     sync.Once
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(interval time.Duration, logger *zap.Logger) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		interval: interval,
		window:   200 * time.Millisecond,
		stop:     make(chan struct{}),
	}
}

// Start takes a first sample and starts the collection loop
func (c *MetricsCollector) Start(ctx context.Context) error {
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))

	if err := c.Collect(); err != nil {
		return fmt.Errorf("failed to collect initial metrics: %w", err)
	}

	go c.collectLoop(ctx)
	return nil
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.once.Do(func() {
		c.logger.Info("Stopping metrics collector")
		close(c.stop)
	})
}

// collectLoop runs the metrics collection loop
func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Collect(); err != nil {
				c.logger.Error("Failed to collect metrics", zap.Error(err))
			}
		}
	}
}

// Collect samples CPU and memory usage and stores the result
func (c *MetricsCollector) Collect() error {
	cpuPercent, err := cpu.Percent(c.window, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	stats := model.HostStats{
		MemoryUsage: memInfo.UsedPercent,
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().UTC(),
	}
	if len(cpuPercent) > 0 {
		stats.CPUUsage = cpuPercent[0]
	}

	c.mu.Lock()
	c.latest = stats
	c.mu.Unlock()

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", stats.CPUUsage),
		zap.Float64("memory_usage", stats.MemoryUsage),
		zap.Int("goroutines", stats.Goroutines))
	return nil
}

// Snapshot returns the most recent sample
func (c *MetricsCollector) Snapshot() model.HostStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
