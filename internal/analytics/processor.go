package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"snipr/internal/service"
)

// Job is one click waiting to be recorded.
type Job struct {
	Code    string
	Request service.RequestContext
}

// Config holds the processor's concurrency and reliability settings.
type Config struct {
	WorkerCount     int           // number of worker goroutines
	BufferSize      int           // size of the job queue buffer
	RetryAttempts   int           // attempts per job before giving up
	RetryDelay      time.Duration // base delay between retries
	ShutdownTimeout time.Duration // time to wait for graceful shutdown
}

// DefaultConfig returns sensible defaults for a single-instance deployment.
func DefaultConfig() Config {
	return Config{
		WorkerCount:     3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Processor records clicks off the redirect's hot path. Submissions never
// block: when the queue is full the click is dropped and counted as lost,
// which is preferable to delaying the redirect.
type Processor struct {
	config   Config
	clicks   *service.ClickService
	log      *zap.Logger
	jobQueue chan *Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
}

func NewProcessor(clicks *service.ClickService, log *zap.Logger, config Config) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:   config,
		clicks:   clicks,
		log:      log,
		jobQueue: make(chan *Job, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	p.log.Info("starting analytics processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Int("retry_attempts", p.config.RetryAttempts),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop drains the workers, waiting at most ShutdownTimeout.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	p.log.Info("stopping analytics processor")

	p.cancel()
	close(p.jobQueue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("analytics processor stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.log.Warn("analytics processor shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}

	p.started = false
	return nil
}

// Submit enqueues a click without blocking. A full queue drops the job.
func (p *Processor) Submit(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("processor is shutting down")
	default:
		p.log.Error("analytics queue is full, dropping click",
			zap.String("code", job.Code),
			zap.Int("queue_size", len(p.jobQueue)),
		)
		return fmt.Errorf("analytics queue is full")
	}
}

func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("analytics worker started")

	for {
		select {
		case job := <-p.jobQueue:
			if job == nil {
				log.Debug("analytics worker stopped")
				return
			}
			p.recordWithRetry(log, job)

		case <-p.ctx.Done():
			log.Debug("analytics worker received shutdown signal")
			return
		}
	}
}

// recordWithRetry retries transient storage failures with exponential
// backoff. A link deleted between redirect and processing is not an error
// worth retrying.
func (p *Processor) recordWithRetry(log *zap.Logger, job *Job) {
	var lastErr error

	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := p.clicks.Record(ctx, job.Code, job.Request)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Info("click recorded after retry",
					zap.String("code", job.Code),
					zap.Int("attempt", attempt),
				)
			}
			return
		}
		if errors.Is(err, service.ErrNotFound) {
			log.Debug("link vanished before click was recorded", zap.String("code", job.Code))
			return
		}

		lastErr = err
		log.Warn("click recording failed",
			zap.String("code", job.Code),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == p.config.RetryAttempts {
			break
		}

		delay := p.config.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			log.Debug("worker shutdown during retry delay")
			return
		}
	}

	log.Error("click lost after all retries",
		zap.String("code", job.Code),
		zap.Int("attempts", p.config.RetryAttempts),
		zap.Error(lastErr),
	)
}

// Stats exposes queue depth for the health endpoint.
func (p *Processor) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"started":        p.started,
		"queue_length":   len(p.jobQueue),
		"queue_capacity": cap(p.jobQueue),
		"worker_count":   p.config.WorkerCount,
	}
}
