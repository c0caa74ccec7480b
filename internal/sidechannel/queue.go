// Package sidechannel runs best-effort secondary effects off the request path.
// A task's failure is logged and never propagates to the operation that
// scheduled it.
package sidechannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
)

var (
	// ErrQueueFull reports a task dropped because every worker was busy.
	ErrQueueFull = errors.New("sidechannel: queue full")
	// ErrClosed reports a task submitted after Close.
	ErrClosed = errors.New("sidechannel: queue closed")
)

// Task is a unit of best-effort work.
type Task func(ctx context.Context) error

// Queue bounds concurrent side-channel tasks.
type Queue struct {
	group   errgroup.Group
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics records task runs.
func WithMetrics(m *jobmetrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithTimeout bounds each task; zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// NewQueue allows at most workers tasks to run at once.
func NewQueue(workers int, logger *slog.Logger, opts ...Option) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{logger: logger.With(slog.String("component", "sidechannel")), timeout: time.Minute}
	q.group.SetLimit(workers)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit starts task without blocking. The returned handle lets a caller
// await the outcome; ignoring it detaches the task. The task's context keeps
// ctx's values but not its cancellation.
func (q *Queue) Submit(ctx context.Context, name string, task Task) *Handle {
	h := newHandle()
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		h.finish(ErrClosed)
		return h
	}
	detached := context.WithoutCancel(ctx)
	started := q.group.TryGo(func() error {
		h.finish(q.run(detached, name, task))
		return nil
	})
	if !started {
		q.metrics.Dropped(name)
		q.logger.Warn("side-channel task dropped", slog.String("task", name))
		h.finish(ErrQueueFull)
	}
	return h
}

// Close stops accepting tasks and waits for running ones until ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, name string, task Task) (err error) {
	tracker := q.metrics.Track(name)
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sidechannel: task %s panicked: %v", name, r)
			q.logger.Error("side-channel task panicked", slog.String("task", name), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		_ = tracker.End(err)
		if err != nil {
			q.logger.Error("side-channel task failed", slog.String("task", name), slog.Any("error", err))
		}
	}()
	return task(ctx)
}

// Handle is the outcome of one submitted task.
type Handle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the task has finished or was rejected.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed returns a handle that has already finished with err.
func Completed(err error) *Handle {
	h := newHandle()
	h.finish(err)
	return h
}
