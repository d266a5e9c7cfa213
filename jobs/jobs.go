// Copyright 2025, the Neptune contributors.

// Package jobs runs the independent tasks of one pipeline stage on a
// bounded worker pool and joins them with fail-fast semantics: the first
// task error cancels the remaining work and is returned to the caller.
// Control always returns, even when a task panics.
package jobs

import (
	"context"
	"fmt"
	"sync"
)

// WorkerError is a systemic task failure: a crashed worker, a missing
// external dependency, or any error a stage task returns. It aborts the
// stage and the run.
type WorkerError struct {
	Task string
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Task is one unit of stage work. Tasks within a stage share no mutable
// state: each reads immutable inputs and writes to a private output slot.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a bounded worker pool. The zero value runs tasks one at a time.
type Pool struct {
	Workers int
}

// Run executes all tasks and blocks until every started task has returned.
// The first failure cancels the context seen by the remaining tasks and is
// returned wrapped as a WorkerError; queued tasks that have not started are
// skipped. A panicking task is recovered into a WorkerError rather than
// killing the process or leaving the stage hanging.
func (p Pool) Run(ctx context.Context, tasks []Task) error {

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		first error
	)
	fail := func(err error) {
		mu.Lock()
		if first == nil {
			first = err
			cancel()
		}
		mu.Unlock()
	}

	run := func(t Task) {
		defer func() {
			if r := recover(); r != nil {
				fail(&WorkerError{Task: t.Name, Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		if err := t.Run(ctx); err != nil {
			fail(&WorkerError{Task: t.Name, Err: err})
		}
	}

	feed := make(chan Task)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for t := range feed {
				if ctx.Err() != nil {
					continue
				}
				run(t)
			}
		}()
	}

	for _, t := range tasks {
		feed <- t
	}
	close(feed)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if first != nil {
		return first
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
