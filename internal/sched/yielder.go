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

package sched

import (
	"context"
	"errors"
)

// ErrCancelled is returned by Yield when the coroutine's token has been
// cancelled.
var ErrCancelled = errors.New("sched: operation cancelled")

// Yielder is the suspension primitive a coroutine uses to await external
// progress. A Transport implementation calls Yield to
// block until the condition it is waiting on (connection established, data
// arrived, ...) is satisfied, and calls Wake from whatever goroutine
// discovers that condition became true.
type Yielder interface {
	// Yield suspends the calling coroutine until Wake is called or ctx is
	// done, whichever happens first. It returns ErrCancelled if ctx ends
	// first, whatever the reason ctx ended.
	Yield(ctx context.Context) error

	// Wake resumes a coroutine suspended in Yield. Safe to call from any
	// goroutine, and safe to call even if nothing is currently yielded (the
	// wake is remembered for the next Yield call).
	Wake()
}

// yielder is the Scheduler-owned implementation of Yielder. Exactly one
// exists per task.
type yielder struct {
	sched *Scheduler
	wake  chan struct{} // buffered 1: remembers a Wake that raced Yield
}

func newYielder(s *Scheduler) *yielder {
	return &yielder{sched: s, wake: make(chan struct{}, 1)}
}

func (y *yielder) Wake() {
	select {
	case y.wake <- struct{}{}:
	default:
	}
}

func (y *yielder) Yield(ctx context.Context) error {
	// Release the execution baton while this coroutine is blocked so that
	// somebody else gets a turn, and take it back before returning: only
	// one task executes at a time between suspension points.
	y.sched.releaseBaton()

	select {
	case <-y.wake:
	case <-ctx.Done():
		y.sched.acquireBaton()
		return ErrCancelled
	}

	y.sched.acquireBaton()
	return nil
}
