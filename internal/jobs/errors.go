package jobs

import "errors"

var (
	// ErrJobNotFound is returned when a job ID is unknown or has expired
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned when the runner cannot accept more work
	ErrQueueFull = errors.New("job queue is full")

	// ErrRunnerStopped is returned when submitting to a stopped runner
	ErrRunnerStopped = errors.New("job runner stopped")
)
