// Package worker runs detectors against queued query jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/metrics"
	"github.com/luxfi/geofence/internal/queue"
	"github.com/luxfi/geofence/zone"
)

// ErrRunning is returned by Start on a running pool
var ErrRunning = errors.New("pool already running")

// StopTimeout bounds how long Stop waits for in-flight jobs
var StopTimeout = 30 * time.Second

// Pool manages a pool of query workers. Each worker owns a shallow copy of
// the detector.
type Pool struct {
	numWorkers   int
	queue        queue.Queue
	detector     *detect.Detector
	wg           sync.WaitGroup
	cancel       context.CancelFunc
	running      atomic.Bool
	successCount atomic.Int64
	failureCount atomic.Int64
}

// NewPool creates a pool of n workers
func NewPool(q queue.Queue, d *detect.Detector, n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{numWorkers: n, queue: q, detector: d}
}

// Start starts the worker pool.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	logger.L().Info("workers_starting", "workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, p.detector.ShallowCopy())
	}
	return nil
}

// Stop cancels the workers and waits for them to return.
func (p *Pool) Stop() error {
	if !p.running.Load() {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.L().Info("workers_stopped", "succeeded", p.successCount.Load(), "failed", p.failureCount.Load())
	case <-time.After(StopTimeout):
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

// Succeeded returns the number of completed jobs
func (p *Pool) Succeeded() int64 {
	return p.successCount.Load()
}

// Failed returns the number of failed jobs
func (p *Pool) Failed() int64 {
	return p.failureCount.Load()
}

func (p *Pool) worker(ctx context.Context, id int, d *detect.Detector) {
	defer p.wg.Done()
	log := logger.L().With("worker", id)
	log.Debug("worker_started")

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				return
			}
			log.Warn("pop_failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.process(ctx, d, job)
	}
}

func (p *Pool) process(ctx context.Context, d *detect.Detector, job *queue.Job) {
	log := logger.L().With("job", job.ID)

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Warn("job_update_failed", "error", err.Error())
	}

	report, err := d.Detect(ctx, zone.Point{Lat: job.Lat, Lon: job.Lon})
	if err != nil {
		p.fail(ctx, job, fmt.Errorf("detect: %w", err))
		return
	}

	job.Status = queue.StatusCompleted
	job.Report = report
	if err := p.queue.Update(ctx, job); err != nil {
		log.Warn("job_update_failed", "error", err.Error())
	}
	p.successCount.Add(1)
	metrics.JobsTotal.WithLabelValues(queue.StatusCompleted.String()).Inc()
	log.Debug("job_completed", "band", report.Band, "matches", report.Matches())
}

func (p *Pool) fail(ctx context.Context, job *queue.Job, err error) {
	job.Status = queue.StatusFailed
	job.Error = err.Error()
	if uerr := p.queue.Update(ctx, job); uerr != nil {
		logger.L().Warn("job_update_failed", "job", job.ID, "error", uerr.Error())
	}
	p.failureCount.Add(1)
	metrics.JobsTotal.WithLabelValues(queue.StatusFailed.String()).Inc()
	logger.L().Warn("job_failed", "job", job.ID, "error", job.Error)
}
