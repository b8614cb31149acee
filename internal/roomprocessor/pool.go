// Package roomprocessor implements the shared worker pool and the
// per-utterance processing pipeline: STT, parallel translation fan-out,
// and parallel TTS fan-out. One pool bounds total concurrency across
// every room's fan-out via golang.org/x/sync/semaphore.
package roomprocessor

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is the single process-wide bounded worker pool: translation and
// TTS fan-out for every room submit to the same instance.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool constructs a Pool admitting at most size concurrent tasks.
func NewPool(size int64) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Run blocks until a pool slot is free (or ctx is cancelled), then executes
// fn. Callers fanning out N tasks call Run from N goroutines and wait on
// them themselves (the processor uses an errgroup.Group per fan-out); Run
// itself only enforces the concurrency cap.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	fn()
	return nil
}
