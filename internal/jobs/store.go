package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/t77yq/pulse/internal/model"
)

// Store keeps background jobs in memory. Jobs expire after the configured
// TTL and the least recently used job is evicted once capacity is reached.
type Store struct {
	mu   sync.Mutex
	jobs *expirable.LRU[string, *model.Job]
}

// NewStore creates a new job store
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{
		jobs: expirable.NewLRU[string, *model.Job](capacity, nil, ttl),
	}
}

// Create registers a job of the given kind. Jobs count as processing from
// submission on; StartedAt is set once a worker picks them up.
func (s *Store) Create(kind string) *model.Job {
	job := &model.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.JobStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs.Add(job.ID, job)
	s.mu.Unlock()

	return cloneJob(job)
}

// Get returns a snapshot of the job
func (s *Store) Get(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs.Peek(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Update applies fn to the stored job
func (s *Store) Update(id string, fn func(job *model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs.Peek(id)
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}

// List returns snapshots of all live jobs, newest first
func (s *Store) List() []*model.Job {
	s.mu.Lock()
	values := s.jobs.Values()
	jobs := make([]*model.Job, 0, len(values))
	for _, job := range values {
		jobs = append(jobs, cloneJob(job))
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// PurgeFinished removes terminal jobs that completed before the cutoff and
// returns how many were removed
func (s *Store) PurgeFinished(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range s.jobs.Keys() {
		job, ok := s.jobs.Peek(id)
		if !ok || !job.Status.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(before) {
			s.jobs.Remove(id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live jobs
func (s *Store) Len() int {
	return s.jobs.Len()
}

func cloneJob(job *model.Job) *model.Job {
	c := *job
	if job.Result != nil {
		c.Result = append([]byte(nil), job.Result...)
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
