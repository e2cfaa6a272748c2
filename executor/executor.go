// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor provides named, single-goroutine dispatch queues.
// Manager registers one under its configured ExecutorName, flushes it on
// shutdown and destroys it on Close; it pushes no jobs of its own, and PDU
// callbacks and command handlers are not routed through it (they run
// under the Manager's reentrant lock on the goroutine that triggered
// them).
package executor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avdeccgo/avdecc/internal/goroutineid"
)

var (
	// ErrDuplicateExecutorName is returned by Registry.Register when name
	// is already registered.
	ErrDuplicateExecutorName = errors.New("executor: name already registered")
	// ErrExecutorNotFound names the "no Executor under that name" condition.
	// Registry's own methods report it without this error: Get returns
	// false, Destroy returns false, and PushJob and Flush do nothing.
	ErrExecutorNotFound = errors.New("executor: name not registered")
	// ErrJobTimedOut is returned by WaitJobResponse when the timeout
	// elapses before the job runs to completion.
	ErrJobTimedOut = errors.New("executor: job did not complete before timeout")
	// ErrJobPanicked wraps a recovered panic value from a job run via
	// WaitJobResponse. PushJob and Flush never surface job panics; they
	// are recovered and dropped so one bad callback cannot kill the
	// executor goroutine.
	ErrJobPanicked = errors.New("executor: job panicked")
)

type job struct {
	fn   func()
	done chan struct{}
}

// Executor runs pushed jobs one at a time, in submission order, on a
// single dedicated goroutine created when the Executor is constructed.
type Executor struct {
	name      string
	jobs      chan job
	goroutine uint64
	ready     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func newExecutor(name string) *Executor {
	e := &Executor{
		name:  name,
		jobs:  make(chan job, 256),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.run()
	<-e.ready
	return e
}

func (e *Executor) run() {
	e.goroutine = goroutineid.Current()
	close(e.ready)
	for {
		select {
		case j := <-e.jobs:
			e.runJob(j)
		case <-e.done:
			return
		}
	}
}

func (e *Executor) runJob(j job) {
	defer func() {
		recover() // a panicking job must not kill the executor goroutine
		if j.done != nil {
			close(j.done)
		}
	}()
	j.fn()
}

// isSelf reports whether the calling goroutine is this Executor's own
// dispatch goroutine, so WaitJobResponse can run fn inline instead of
// deadlocking a job against itself.
func (e *Executor) isSelf() bool {
	return goroutineid.Current() == e.goroutine
}

// PushJob enqueues fn to run on e's goroutine and returns without waiting
// for it to run. It is a no-op once e has been closed.
func (e *Executor) PushJob(fn func()) {
	select {
	case e.jobs <- job{fn: fn}:
	case <-e.done:
	}
}

// Flush blocks until every job queued before the call has finished
// running. It returns immediately if e has been closed.
func (e *Executor) Flush() {
	done := make(chan struct{})
	select {
	case e.jobs <- job{fn: func() {}, done: done}:
	case <-e.done:
		return
	}
	select {
	case <-done:
	case <-e.done:
	}
}

// Close stops accepting new jobs and terminates e's goroutine once its
// current job (if any) finishes. Close is idempotent.
func (e *Executor) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

type jobResult[T any] struct {
	val T
	err error
}

// WaitJobResponse runs fn on e's goroutine and blocks for its result. If
// the calling goroutine already is e's own dispatch goroutine, fn runs
// inline rather than being queued, so a handler invoked by e can call back
// into code that also calls WaitJobResponse(e, ...) without deadlocking.
// A timeout of zero or less waits indefinitely.
func WaitJobResponse[T any](e *Executor, fn func() (T, error), timeout time.Duration) (T, error) {
	if e.isSelf() {
		return fn()
	}

	resultCh := make(chan jobResult[T], 1)
	e.PushJob(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				resultCh <- jobResult[T]{val: zero, err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
			}
		}()
		v, err := fn()
		resultCh <- jobResult[T]{val: v, err: err}
	})

	if timeout <= 0 {
		r := <-resultCh
		return r.val, r.err
	}
	select {
	case r := <-resultCh:
		return r.val, r.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrJobTimedOut
	}
}

// WaitJob is WaitJobResponse for jobs with no return value.
func WaitJob(e *Executor, fn func(), timeout time.Duration) error {
	_, err := WaitJobResponse(e, func() (struct{}, error) {
		fn()
		return struct{}{}, nil
	}, timeout)
	return err
}
