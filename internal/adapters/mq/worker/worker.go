// Package worker runs round tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Task is the unit of work a worker executes.
type Task = queue.Task

// Queue defines how workers receive tasks.
type Queue interface {
	Enqueue(ctx context.Context, t Task) bool
	Dequeue(ctx context.Context) <-chan Task
	Close() error
	IsClosed() bool
}

// Worker processes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker executes tasks taken from a Queue.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
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

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.process(&task)
		}
	}
}

// Shutdown gracefully stops the worker after its current task.
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

// process runs one task and always completes it, even on panic.
func (w *InMemoryWorker) process(task *Task) {
	start := time.Now()
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanic, task.Name, r)
			w.logger.Error(ctx, "task panicked", logger.String("task", task.Name), logger.Any("panic", r))
		}
		metrics.RecordTaskLatency(time.Since(start))
		if err != nil {
			metrics.RecordTaskError()
			metrics.RecordErrorByComponent("worker", "task_error")
		}
		task.Complete(err)
	}()

	err = task.Run(ctx)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu      sync.RWMutex
	started bool
	closed  bool

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 uses a CPU based default.
func NewPool(workerCount int, q Queue, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for _, opt := range opts {
		opt(pool)
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(pool.logger),
		)
	}

	metrics.UpdatePoolWorkers(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Submit queues fn and returns a channel that receives its result once.
// It fails fast with ErrPoolClosed or ErrPoolFull instead of blocking.
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.queue.IsClosed() {
		metrics.RecordPoolRejection()
		return nil, ErrPoolClosed
	}

	done := make(chan error, 1)
	task := Task{Name: name, Ctx: ctx, Run: fn, Done: done}
	if !p.queue.Enqueue(ctx, task) {
		metrics.RecordPoolRejection()
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("submit %s: %w", name, err)
		}
		if p.queue.IsClosed() {
			return nil, ErrPoolClosed
		}
		return nil, fmt.Errorf("submit %s: %w", name, ErrPoolFull)
	}
	return done, nil
}

// Shutdown stops accepting tasks, lets workers finish what they hold,
// and fails every task still queued with ErrPoolClosed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if !started {
			break
		}
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	drained := 0
	for task := range p.queue.Dequeue(ctx) {
		task.Complete(ErrPoolClosed)
		drained++
	}
	if drained > 0 {
		p.logger.Warn(ctx, "failed queued tasks on shutdown", logger.Int("count", drained))
	}
	metrics.UpdatePoolQueueSize(0)

	return nil
}
