// Package repository defines the analysis job store interface and errors.
package repository

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/metrics"
)

// Store keeps analysis jobs for later lookup.
type Store interface {
	// Put inserts or replaces the job with the same ID.
	Put(ctx context.Context, job model.Job) error

	// Get returns the job with id.
	// Returns ErrNotFound if the job is unknown or was evicted.
	Get(ctx context.Context, id string) (model.Job, error)

	// Delete drops the job with id. Unknown ids are ignored.
	Delete(ctx context.Context, id string)

	// Count returns the number of jobs currently held.
	Count(ctx context.Context) int
}

// LRUStore is a bounded Store that evicts the least recently used job once
// capacity is reached. It is safe for concurrent use.
type LRUStore struct {
	cache    *lru.Cache[string, model.Job]
	capacity int
	onEvict  func(id string)
}

// NewLRUStore creates a store with the given options.
func NewLRUStore(opts ...Option) (*LRUStore, error) {
	s := &LRUStore{capacity: 10_000}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.NewWithEvict(s.capacity, func(id string, _ model.Job) {
		if s.onEvict != nil {
			s.onEvict(id)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create job cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Put implements Store.
func (s *LRUStore) Put(_ context.Context, job model.Job) error {
	if job.ID == "" {
		return ErrInvalidJob
	}
	s.cache.Add(job.ID, job)
	metrics.UpdateStoredJobs(s.cache.Len())
	return nil
}

// Get implements Store.
func (s *LRUStore) Get(_ context.Context, id string) (model.Job, error) {
	job, ok := s.cache.Get(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Delete implements Store.
func (s *LRUStore) Delete(_ context.Context, id string) {
	s.cache.Remove(id)
	metrics.UpdateStoredJobs(s.cache.Len())
}

// Count implements Store.
func (s *LRUStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Capacity returns the maximum number of jobs held.
func (s *LRUStore) Capacity() int {
	return s.capacity
}
