// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sched is catnap's cooperative coroutine scheduler.
// Go has no first-class stackful coroutines, so a coroutine here is a
// goroutine paired with a Yielder; a single buffered "execution baton" is
// held by at most one coroutine's non-suspended code at a time; it is
// handed off explicitly at Yield and reclaimed on resume. That gives the
// "only one task executes at a time between suspension points" guarantee
// without mutexes on the core data structures, while still
// letting blocking *_async transport calls live on their own goroutine
// stack.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"

	"github.com/catnapio/catnap/internal/catlog"
)

// ErrTimeout is returned by Wait/WaitAny when the deadline passes before
// the named coroutine(s) complete. A timeout drops the
// harvest without cancelling the coroutine, which remains pending and may
// be harvested later.
var ErrTimeout = errors.New("sched: wait timed out")

// Scheduler is a single-threaded cooperative task executor.
type Scheduler struct {
	clock timeutil.Clock

	baton chan struct{} // capacity 1; held by at most one running coroutine

	mu      sync.Mutex
	tasks   map[TaskHandle]*task
	nextID  uint64
}

// New creates a Scheduler. clock is used to timestamp coroutines for
// logging/tracing; pass nil for the real wall clock.
func New(clock timeutil.Clock) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock()
	}
	s := &Scheduler{
		clock: clock,
		baton: make(chan struct{}, 1),
		tasks: make(map[TaskHandle]*task),
	}
	s.baton <- struct{}{}
	return s
}

func (s *Scheduler) releaseBaton() { s.baton <- struct{}{} }
func (s *Scheduler) acquireBaton() { <-s.baton }

// InsertCoroutine constructs the coroutine by calling factory(ctx, y),
// registers it under name (which should include the operation and
// descriptor, e.g. "accept qd=3"), associates it with owningQD for
// tracking/cancellation-on-close, and returns a handle. name is purely for
// logging/tracing; it need not be unique.
func (s *Scheduler) InsertCoroutine(name string, owningQD uint32, factory Factory) (TaskHandle, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.nextID++
	handle := TaskHandle(s.nextID)
	t := &task{
		name:     name,
		owningQD: owningQD,
		cancel:   cancel,
		done:     make(chan struct{}),
		yielder:  newYielder(s),
	}
	s.tasks[handle] = t
	s.mu.Unlock()

	catlog.Debugf("scheduling coroutine %q (qd=%d) at %s", name, owningQD, s.clock.Now())

	go s.run(ctx, handle, t, factory)

	return handle, nil
}

func (s *Scheduler) run(ctx context.Context, handle TaskHandle, t *task, factory Factory) {
	tracedCtx, report := reqtrace.Trace(ctx, t.name)

	s.acquireBaton()
	result, err := factory(tracedCtx, t.yielder)
	s.releaseBaton()

	report(err)

	t.mu.Lock()
	t.result, t.err = result, err
	t.mu.Unlock()
	close(t.done)
}

// Cancel marks handle's coroutine cancelled: its next (or current) Yield
// call returns ErrCancelled. Side effects the coroutine already caused on
// the transport are not rolled back.
func (s *Scheduler) Cancel(handle TaskHandle) error {
	s.mu.Lock()
	t, ok := s.tasks[handle]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("sched: unknown task %d", handle)
	}
	t.cancel()
	return nil
}

// Owner returns the descriptor a coroutine was registered under.
func (s *Scheduler) Owner(handle TaskHandle) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[handle]
	if !ok {
		return 0, false
	}
	return t.owningQD, true
}

// Poll drives any scheduler-internal bookkeeping forward. catnap's
// coroutines make progress as soon as their Yielder is woken, without
// needing an external pump; Poll exists so transports that must be pumped
// explicitly (e.g. an io_uring-style completion queue) have a hook to do
// so from the application's event loop. The default Scheduler has nothing
// of its own to drive.
func (s *Scheduler) Poll() {}

// Wait blocks until handle's coroutine completes or timeout elapses. A
// zero timeout means wait forever.
func (s *Scheduler) Wait(handle TaskHandle, timeout time.Duration) (uint32, any, error, error) {
	s.mu.Lock()
	t, ok := s.tasks[handle]
	s.mu.Unlock()
	if !ok {
		return 0, nil, nil, fmt.Errorf("sched: unknown task %d", handle)
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	s.Poll()
	select {
	case <-t.done:
		return s.harvest(handle, t)
	case <-timeoutCh:
		return 0, nil, nil, ErrTimeout
	}
}

// WaitAny is like Wait, but for the first of several handles to complete.
func (s *Scheduler) WaitAny(handles []TaskHandle, timeout time.Duration) (int, uint32, any, error, error) {
	tasks := make([]*task, len(handles))
	s.mu.Lock()
	for i, h := range handles {
		t, ok := s.tasks[h]
		if !ok {
			s.mu.Unlock()
			return -1, 0, nil, nil, fmt.Errorf("sched: unknown task %d", h)
		}
		tasks[i] = t
	}
	s.mu.Unlock()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	s.Poll()

	// A small, fixed fan-in: poll every candidate's done channel plus the
	// timer. len(handles) is always small (one token per outstanding
	// operation), so this is simpler and cheaper than reflect.Select for
	// the common case while remaining correct for the general one.
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		for i, t := range tasks {
			select {
			case <-t.done:
				qd, result, err, _ := s.harvest(handles[i], t)
				return i, qd, result, err, nil
			default:
			}
		}
		select {
		case <-timeoutCh:
			return -1, 0, nil, nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

// harvest extracts a completed task's result, marking it harvested.
// Harvesting twice is an error: tokens never double-complete.
func (s *Scheduler) harvest(handle TaskHandle, t *task) (uint32, any, error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.harvested {
		return 0, nil, nil, fmt.Errorf("sched: task %d already harvested", handle)
	}
	t.harvested = true

	s.mu.Lock()
	delete(s.tasks, handle)
	s.mu.Unlock()

	return t.owningQD, t.result, t.err, nil
}
