package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

// Func is the body of a background job. progress records a human readable
// progress note on the job.
type Func func(ctx context.Context, progress func(string)) (interface{}, error)

// RunnerConfig defines configuration for the runner
type RunnerConfig struct {
	Workers   int
	QueueSize int
}

type work struct {
	jobID string
	fn    Func
}

// Runner executes jobs on a fixed pool of workers
type Runner struct {
	logger *zap.Logger
	store  *Store
	queue  chan work
	config RunnerConfig

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a new job runner
func NewRunner(store *Store, config RunnerConfig, logger *zap.Logger) *Runner {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	return &Runner{
		logger: logger.Named("job-runner"),
		store:  store,
		queue:  make(chan work, config.QueueSize),
		config: config,
	}
}

// Start starts the worker pool
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.Info("Starting job runner",
		zap.Int("workers", r.config.Workers),
		zap.Int("queue_size", r.config.QueueSize))

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
}

// Stop cancels running jobs and waits for the workers to exit
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.logger.Info("Stopping job runner")
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Submit registers a job and queues it for execution
func (r *Runner) Submit(kind string, fn Func) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return nil, ErrRunnerStopped
	}

	job := r.store.Create(kind)
	select {
	case r.queue <- work{jobID: job.ID, fn: fn}:
	default:
		r.store.Update(job.ID, func(j *model.Job) {
			now := time.Now().UTC()
			j.Status = model.JobStatusFailed
			j.Error = ErrQueueFull.Error()
			j.CompletedAt = &now
		})
		r.logger.Warn("Job rejected", zap.String("job_id", job.ID), zap.String("kind", kind))
		return nil, ErrQueueFull
	}

	r.logger.Info("Job submitted",
		zap.String("job_id", job.ID),
		zap.String("kind", kind))
	return job, nil
}

// Get returns the current state of a job
func (r *Runner) Get(id string) (*model.Job, error) {
	return r.store.Get(id)
}

// List returns all live jobs, newest first
func (r *Runner) List() []*model.Job {
	return r.store.List()
}

func (r *Runner) worker(ctx context.Context, n int) {
	defer r.wg.Done()

	for w := range r.queue {
		if ctx.Err() != nil {
			r.finish(w.jobID, nil, ctx.Err())
			continue
		}
		r.run(ctx, w)
	}
	r.logger.Debug("Worker exited", zap.Int("worker", n))
}

func (r *Runner) run(ctx context.Context, w work) {
	start := time.Now().UTC()
	r.store.Update(w.jobID, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
		j.StartedAt = &start
	})

	progress := func(note string) {
		r.store.Update(w.jobID, func(j *model.Job) {
			j.Progress = note
		})
	}

	var (
		result interface{}
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("job panicked: %v", p)
			}
		}()
		result, err = w.fn(ctx, progress)
	}()

	r.finish(w.jobID, result, err)
}

func (r *Runner) finish(jobID string, result interface{}, err error) {
	var data []byte
	if err == nil && result != nil {
		data, err = json.Marshal(result)
		if err != nil {
			err = fmt.Errorf("failed to marshal job result: %w", err)
		}
	}

	updateErr := r.store.Update(jobID, func(j *model.Job) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		if err != nil {
			j.Status = model.JobStatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = model.JobStatusCompleted
		j.Result = data
	})
	if updateErr != nil {
		r.logger.Warn("Job expired before completion", zap.String("job_id", jobID))
		return
	}

	if err != nil {
		r.logger.Error("Job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	r.logger.Info("Job completed", zap.String("job_id", jobID))
}
