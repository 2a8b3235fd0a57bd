// Package worker runs jobs serially per key and concurrently across keys.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/audiograbba/internal/domain"
)

var (
	// ErrShutdownTimeout is returned when lanes don't drain within timeout.
	ErrShutdownTimeout = errors.New("dispatcher shutdown timed out")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrQueueFull is returned when a key already has QueueSize pending jobs.
	ErrQueueFull = errors.New("session queue full")
)

// Job is one unit of work for a session.
type Job func(ctx context.Context)

// Config holds dispatcher configuration.
type Config struct {
	QueueSize   int
	IdleTimeout time.Duration
}

// Dispatcher keeps one goroutine per active user. Jobs for the same user run
// in submission order; jobs for different users run in parallel.
type Dispatcher struct {
	queueSize   int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	lanes   map[domain.UserID]*lane
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type lane struct {
	key  domain.UserID
	jobs chan Job
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		queueSize:   cfg.QueueSize,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger,
		lanes:       make(map[domain.UserID]*lane),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit queues job behind any pending work for key.
func (d *Dispatcher) Submit(key domain.UserID, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	l, ok := d.lanes[key]
	if !ok {
		l = &lane{key: key, jobs: make(chan Job, d.queueSize)}
		d.lanes[key] = l
		d.wg.Add(1)
		go d.run(l)
	}

	select {
	case l.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Active returns the number of users with a running lane.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Stop refuses new jobs and waits for queued ones to finish. When timeout
// passes first the shared context is cancelled and ErrShutdownTimeout returned.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.logger.Info("stopping dispatcher")

	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, l := range d.lanes {
			close(l.jobs)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("dispatcher stopped gracefully")
		return nil
	case <-time.After(timeout):
		d.cancel()
		return ErrShutdownTimeout
	}
}

func (d *Dispatcher) run(l *lane) {
	defer d.wg.Done()

	logger := d.logger.With("user_id", l.key)
	logger.Debug("session worker started")

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case job, ok := <-l.jobs:
			if !ok {
				logger.Debug("session worker stopping")
				return
			}
			d.execute(logger, job)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)
		case <-idle.C:
			if d.retire(l) {
				logger.Debug("session worker idle, exiting")
				return
			}
			idle.Reset(d.idleTimeout)
		}
	}
}

// retire removes an idle lane unless a job slipped in or Stop closed it.
func (d *Dispatcher) retire(l *lane) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(l.jobs) > 0 {
		return false
	}
	delete(d.lanes, l.key)
	return true
}

func (d *Dispatcher) execute(logger *slog.Logger, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session job panicked", "panic", r)
		}
	}()
	job(d.ctx)
}
