package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTaskSet is matched by every validation error returned by the engine
	ErrInvalidTaskSet = errors.New("invalid task set")

	// ErrEmptyTaskSet is returned when no tasks are supplied
	ErrEmptyTaskSet = fmt.Errorf("%w: no tasks supplied", ErrInvalidTaskSet)
)

// DuplicateTaskIDError is returned when two tasks share an ID
type DuplicateTaskIDError struct {
	ID string
}

func (e *DuplicateTaskIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.ID)
}

func (e *DuplicateTaskIDError) Is(target error) bool { return target == ErrInvalidTaskSet }

// UnknownPredecessorError is returned when a task references a predecessor
// that is not part of the task set
type UnknownPredecessorError struct {
	TaskID        string
	PredecessorID string
}

func (e *UnknownPredecessorError) Error() string {
	return fmt.Sprintf("task %q references non-existent predecessor %q", e.TaskID, e.PredecessorID)
}

func (e *UnknownPredecessorError) Is(target error) bool { return target == ErrInvalidTaskSet }

// SelfDependencyError is returned when a task lists itself as a predecessor
type SelfDependencyError struct {
	TaskID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on itself", e.TaskID)
}

func (e *SelfDependencyError) Is(target error) bool { return target == ErrInvalidTaskSet }

// CyclicDependencyError is returned when the predecessor relation has a cycle.
// Cycle lists the tasks along the cycle, starting and ending with TaskID.
type CyclicDependencyError struct {
	TaskID string
	Cycle  []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("circular dependency detected at task %q", e.TaskID)
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrInvalidTaskSet }

// InvalidDurationError is returned for a negative or non-finite duration
type InvalidDurationError struct {
	TaskID   string
	Duration float64
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("task %q has invalid duration %v", e.TaskID, e.Duration)
}

func (e *InvalidDurationError) Is(target error) bool { return target == ErrInvalidTaskSet }
