package workers

import (
	"context"
	"errors"
	"sync"

	"video-looper/internal/logging"
)

var (
	// ErrFull is returned by Submit when no worker or queue slot is free.
	ErrFull = errors.New("workers: no free worker")
	// ErrClosed is returned by Submit after Close or Stop.
	ErrClosed = errors.New("workers: dispatcher closed")
)

// Job is a unit of work. ctx is cancelled by Stop.
type Job func(ctx context.Context)

// Dispatcher runs jobs on a fixed set of goroutines.
//
// With queue 0 a job is only accepted while a worker is waiting for one,
// so Submit refuses work instead of piling it up behind a busy worker.
type Dispatcher struct {
	name string
	jobs chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher starts workers goroutines (at least one) reading from a
// queue of the given capacity.
func NewDispatcher(name string, workers, queue int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		name:   name,
		jobs:   make(chan Job, queue),
		ctx:    ctx,
		cancel: cancel,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	logging.Debug("[workers] %s: started %d worker(s), queue %d", name, workers, queue)
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.execute(job)
	}
}

func (d *Dispatcher) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("[workers] %s: job panicked: %v", d.name, r)
		}
	}()
	job(d.ctx)
}

// Submit hands job to a worker without blocking. It returns ErrFull when
// every worker and queue slot is taken and ErrClosed after Close.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting jobs, lets queued jobs finish and waits for the
// workers. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Stop cancels the context of running jobs, then behaves like Close.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.Close()
}
