// Package asyncbridge implements a single long-lived cooperative executor:
// synchronous callers that need to drive an asynchronous, single-connection
// client (such as a streaming cloud-STT websocket session) submit a task
// and block on its result with a timeout, instead of each goroutine dialing
// its own connection.
package asyncbridge

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Submit when the task does not complete within
// the caller's timeout. The task itself keeps running on the bridge
// goroutine; its result, if any, is discarded.
var ErrTimeout = errors.New("asyncbridge: task timed out")

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("asyncbridge: bridge closed")

// Task is the unit of work the bridge's single goroutine executes serially
// against the shared asynchronous client.
type Task func(ctx context.Context) (any, error)

type job struct {
	ctx    context.Context
	task   Task
	result chan taskResult
}

type taskResult struct {
	value any
	err   error
}

// Bridge runs one goroutine that drains a task queue and executes each task
// to completion before starting the next, so the underlying client (e.g. one
// websocket connection) is never driven by two goroutines at once.
type Bridge struct {
	jobs      chan job
	closed    chan struct{}
	closeOnce sync.Once
}

// New starts the bridge's executor goroutine. queueDepth bounds how many
// pending Submit calls may be queued before Submit itself blocks.
func New(queueDepth int) *Bridge {
	if queueDepth <= 0 {
		queueDepth = 1
	}
	b := &Bridge{
		jobs:   make(chan job, queueDepth),
		closed: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bridge) run() {
	for {
		select {
		case j := <-b.jobs:
			value, err := j.task(j.ctx)
			j.result <- taskResult{value: value, err: err}
		case <-b.closed:
			// Drain tasks that were accepted before Close, then exit.
			for {
				select {
				case j := <-b.jobs:
					value, err := j.task(j.ctx)
					j.result <- taskResult{value: value, err: err}
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues task and blocks until it completes, ctx is cancelled, or
// timeout elapses (whichever first). A zero timeout waits indefinitely on
// ctx alone.
func (b *Bridge) Submit(ctx context.Context, timeout time.Duration, task Task) (any, error) {
	select {
	case <-b.closed:
		return nil, ErrClosed
	default:
	}

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	j := job{ctx: runCtx, task: task, result: make(chan taskResult, 1)}

	select {
	case b.jobs <- j:
	case <-runCtx.Done():
		return nil, timeoutOrContext(runCtx)
	case <-b.closed:
		return nil, ErrClosed
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-runCtx.Done():
		return nil, timeoutOrContext(runCtx)
	}
}

func timeoutOrContext(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// Close stops accepting new tasks. Tasks already queued still run; in-flight
// Submit calls waiting past Close unblock with ErrClosed only if they had
// not yet been accepted into the queue.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}
