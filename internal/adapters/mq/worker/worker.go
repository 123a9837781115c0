// Package worker runs queued analysis jobs through the dynamics engine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/loopwise/internal/domain/dynamics"
	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/logger"
	"github.com/okian/loopwise/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Analyzer runs one system analysis. *dynamics.Engine satisfies it.
type Analyzer interface {
	AnalyzeSystem(ctx context.Context, series map[string][]float64, metricNames []string, entityName, domainLabel string) (*dynamics.Analysis, error)
}

// Recorder persists job state transitions.
type Recorder interface {
	Put(ctx context.Context, job model.Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs and records their outcome using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing analysis jobs.
type InMemoryWorker struct {
	queue    Queue
	analyzer Analyzer
	recorder Recorder
	name     string
	active   *atomic.Int64

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, analyzer Analyzer, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		analyzer: analyzer,
		recorder: recorder,
		name:     "worker",
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("job_id", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and records the running and terminal states. Analysis
// failures end the job as failed; only recording failures are returned.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	job.Status = model.StatusRunning
	job.StartedAt = start
	if err := w.recorder.Put(ctx, job); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("record running job %s: %w", job.ID, err)
	}

	req := job.Request
	analysis, err := w.analyzer.AnalyzeSystem(ctx, req.TimeSeries, req.Names(), req.EntityName, req.DomainLabel)
	job.FinishedAt = time.Now()
	elapsed := float64(job.FinishedAt.Sub(start).Microseconds()) / 1000

	if err != nil {
		reason := "analysis_error"
		if errors.Is(err, dynamics.ErrInvalidInput) {
			reason = "invalid_input"
		}
		metrics.RecordAnalysisFailed(reason)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", reason)
		metrics.RecordErrorByType(reason, "medium")
		w.logger.Warn(ctx, "analysis failed", logger.String("job_id", job.ID), logger.Error(err))

		job.Status = model.StatusFailed
		job.Error = err.Error()
	} else {
		metrics.RecordAnalysisCompleted(elapsed, len(analysis.CausalLinks),
			len(analysis.ReinforcingLoops), len(analysis.BalancingLoops), analysis.ConfidenceScore)
		w.logger.Debug(ctx, "analysis completed",
			logger.String("job_id", job.ID),
			logger.Float64("duration_ms", elapsed),
			logger.Float64("confidence", analysis.ConfidenceScore),
		)

		job.Status = model.StatusSucceeded
		job.Result = analysis
	}

	if err := w.recorder.Put(ctx, job); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("record finished job %s: %w", job.ID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64

	group  *errgroup.Group
	cancel context.CancelFunc

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, analyzer Analyzer, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Nop(),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, analyzer, recorder, workerOpts...)
		w.active = &pool.active
		pool.workers[i] = w
	}
	probe := &InMemoryWorker{logger: pool.logger}
	for _, opt := range opts {
		opt(probe)
	}
	pool.logger = probe.logger.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Active returns the number of workers currently running a job.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	p.group = g

	for _, w := range p.workers {
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}

	go p.startMetricsUpdater(gctx)
}

// startMetricsUpdater samples runtime statistics at the metrics refresh
// interval. Nothing is sampled while metrics are disabled.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	if !metrics.Enabled() {
		return
	}
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.UpdateSystemMemoryUsage(ms.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		last := ms.PauseNs[(ms.NumGC+255)%256]
		metrics.RecordSystemGCPauseTime(float64(last) / float64(time.Millisecond))
	}
}

// Shutdown closes the queue, lets the workers drain what is already queued,
// and waits for them until ctx or the pool timeout expires. Workers still
// running after that are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	if p.group == nil {
		return nil
	}

	waited := make(chan error, 1)
	go func() { waited <- p.group.Wait() }()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case err := <-waited:
		p.cancel()
		return err
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		p.cancel()
		<-waited
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}
