package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrDuplicateTask is returned when a task name is registered twice
var ErrDuplicateTask = errors.New("duplicate maintenance task")

var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TaskFunc is the body of a maintenance task
type TaskFunc func(ctx context.Context) error

// Entry describes a registered maintenance task
type Entry struct {
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Next       time.Time `json:"next"`
	Prev       time.Time `json:"prev,omitempty"`
}

// Scheduler runs periodic maintenance tasks
type Scheduler struct {
	logger  *zap.Logger
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]registered
	ctx     context.Context
	cancel  context.CancelFunc
}

type registered struct {
	id         cron.EntryID
	expression string
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewScheduler creates a new maintenance scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	logger = logger.Named("maintenance")
	cl := &cronLogger{logger: logger.Named("cron")}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		entries: make(map[string]registered),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTask registers fn to run on the cron expression (seconds field first)
func (s *Scheduler) AddTask(name, expression string, timeout time.Duration, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	if _, err := specParser.Parse(expression); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	id, err := s.cron.AddJob(expression, &maintenanceJob{
		scheduler: s,
		name:      name,
		timeout:   timeout,
		fn:        fn,
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entries[name] = registered{id: id, expression: expression}

	s.logger.Info("Added maintenance task",
		zap.String("name", name),
		zap.String("expression", expression))
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting maintenance scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler stopped")
}

// Entries lists the registered tasks ordered by name
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for name, r := range s.entries {
		e := s.cron.Entry(r.id)
		entries = append(entries, Entry{
			Name:       name,
			Expression: r.expression,
			Next:       e.Next,
			Prev:       e.Prev,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// maintenanceJob implements cron.Job
type maintenanceJob struct {
	scheduler *Scheduler
	name      string
	timeout   time.Duration
	fn        TaskFunc
}

// Run implements cron.Job
func (j *maintenanceJob) Run() {
	ctx := j.scheduler.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		j.scheduler.logger.Error("Maintenance task failed",
			zap.String("name", j.name),
			zap.Error(err))
		return
	}

	j.scheduler.logger.Info("Executed maintenance task",
		zap.String("name", j.name),
		zap.Duration("took", time.Since(start)))
}
