// Package pool runs fire-and-forget tasks on a fixed set of workers.
//
// Submit never blocks: when the queue is full the task is dropped and the
// observer is told. A failing or panicking task is logged and isolated; it
// never reaches the code that submitted it.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Outcome of a task as reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Observer is notified once per submitted task.
type Observer func(name, outcome string)

// Config contains pool configuration options.
type Config struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// QueueSize bounds the number of pending tasks.
	QueueSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 64}
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Pending   int   `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type namedTask struct {
	name string
	run  Task
}

// Pool is a bounded worker pool. The zero value is not usable; use New.
type Pool struct {
	logger   *zap.Logger
	observer Observer

	mu     sync.RWMutex
	closed bool
	tasks  chan namedTask

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New starts a pool. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger, observer Observer) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = func(string, string) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger:   logger,
		observer: observer,
		tasks:    make(chan namedTask, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task. It returns false if the pool is closed or the queue
// is full.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(name, "pool closed")
		return false
	}

	select {
	case p.tasks <- namedTask{name: name, run: task}:
		return true
	default:
		p.drop(name, "queue full")
		return false
	}
}

// Close stops accepting tasks, runs everything already queued and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Pending:   len(p.tasks),
		Running:   p.running.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t namedTask) {
	p.running.Add(1)
	defer p.running.Add(-1)

	err := p.safeRun(t)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("background task failed", zap.String("task", t.name), zap.Error(err))
		p.observer(t.name, OutcomeError)
		return
	}
	p.completed.Add(1)
	p.observer(t.name, OutcomeOK)
}

func (p *Pool) safeRun(t namedTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.run(p.ctx)
}

func (p *Pool) drop(name, reason string) {
	p.dropped.Add(1)
	p.logger.Warn("background task dropped", zap.String("task", name), zap.String("reason", reason))
	p.observer(name, OutcomeDropped)
}
