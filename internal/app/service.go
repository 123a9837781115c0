// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/loopwise/internal/adapters/mq/queue"
	workerpool "github.com/okian/loopwise/internal/adapters/mq/worker"
	"github.com/okian/loopwise/internal/adapters/repository"
	"github.com/okian/loopwise/internal/domain/dedupe"
	"github.com/okian/loopwise/internal/domain/dynamics"
	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/logger"
	"github.com/okian/loopwise/pkg/metrics"
)

// Service accepts analysis requests, runs them on a worker pool and keeps
// the results for lookup.
type Service struct {
	mu sync.RWMutex

	// admitMu serialises the claim, store and enqueue steps of Submit so a
	// claimed fingerprint is never observed before its job is stored.
	admitMu sync.Mutex

	// Core components
	engine  *dynamics.Engine
	store   *repository.LRUStore
	deduper dedupe.Deduper
	queue   *jobqueue.InMemoryQueue
	pool    *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	resultCacheSize int
	dedupeSize      int
	dedupeTTL       time.Duration
	maxMetrics      int
	engineOpts      []dynamics.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued analyses.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithResultCacheSize sets how many jobs are kept for lookup.
func WithResultCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.resultCacheSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL sets how long a request fingerprint maps to its first job.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithMaxMetrics caps the number of series accepted per request.
func WithMaxMetrics(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMetrics = n
		}
	}
}

// WithEngineOptions passes tuning options to the analysis engine.
func WithEngineOptions(opts ...dynamics.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1_024,
		resultCacheSize: 10_000,
		dedupeSize:      10_000,
		dedupeTTL:       10 * time.Minute,
		maxMetrics:      64,
		logger:          nil, // Replaced when the service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components and starts the worker pool. Workers outlive
// ctx cancellation; Stop drains them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting analysis service...")

	store, err := repository.NewLRUStore(repository.WithCapacity(s.resultCacheSize))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.store = store
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithTTL(s.dedupeTTL),
	)
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))

	engineOpts := append([]dynamics.Option{dynamics.WithLogger(s.logger.Named("engine"))}, s.engineOpts...)
	s.engine = dynamics.NewEngine(engineOpts...)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine, s.store,
		workerpool.WithLogger(s.logger))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("resultCacheSize", s.resultCacheSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop closes the queue and waits for queued analyses to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping analysis service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	if err != nil {
		s.logger.Warn(ctx, "analysis service stopped with pending work", logger.Error(err))
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "analysis service stopped")
	return nil
}

// Submit validates req and queues it. A request identical to one already
// submitted within the dedupe window returns the earlier job id with
// Duplicate set.
func (s *Service) Submit(ctx context.Context, req model.Request) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.Submission{}, model.ErrNotStarted
	}
	if err := req.Validate(s.maxMetrics); err != nil {
		return model.Submission{}, err
	}

	fp := req.Fingerprint()
	id := uuid.NewString()

	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	existing, seen := s.deduper.Claim(ctx, fp, id)
	if seen {
		if _, err := s.store.Get(ctx, existing); err == nil {
			metrics.RecordAnalysisDuplicate()
			s.logger.Debug(ctx, "duplicate analysis request", logger.String("job_id", existing))
			return model.Submission{JobID: existing, Duplicate: true}, nil
		}
		// The earlier job was evicted; take the fingerprint over.
		s.deduper.Release(ctx, fp, existing)
		if existing, seen = s.deduper.Claim(ctx, fp, id); seen {
			return model.Submission{JobID: existing, Duplicate: true}, nil
		}
	}

	job := model.Job{
		ID:          id,
		Fingerprint: fp,
		Status:      model.StatusQueued,
		Request:     req,
		SubmittedAt: time.Now(),
	}
	if err := s.store.Put(ctx, job); err != nil {
		s.deduper.Release(ctx, fp, id)
		return model.Submission{}, fmt.Errorf("store job %s: %w", id, err)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Release(ctx, fp, id)
		s.store.Delete(ctx, id)
		if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
			s.logger.Warn(ctx, "analysis rejected", logger.String("job_id", id), logger.Error(err))
			return model.Submission{}, fmt.Errorf("%w: %w", model.ErrBackpressure, err)
		}
		return model.Submission{}, fmt.Errorf("enqueue job %s: %w", id, err)
	}

	metrics.RecordAnalysisSubmitted()
	s.logger.Debug(ctx, "analysis queued",
		logger.String("job_id", id),
		logger.Int("metrics", len(req.Names())),
	)
	return model.Submission{JobID: id}, nil
}

// Job returns the job with id in its latest recorded state.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return model.Job{}, model.ErrNotStarted
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Job{}, fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
		}
		return model.Job{}, err
	}
	return job, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"resultCacheSize": s.resultCacheSize,
		"dedupeSize":      s.dedupeSize,
		"maxMetrics":      s.maxMetrics,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stored := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["storedJobs"] = stored
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoredJobs(stored)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
