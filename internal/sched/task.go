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
	"sync"
)

// TaskHandle names a coroutine scheduled by InsertCoroutine. It is resolved
// into a QToken by the caller (catnap.LibOS); within this package it is
// also the key used by Wait/WaitAny/Cancel.
type TaskHandle uint64

// Factory is the body of a coroutine: it runs with the execution baton
// held, suspends via y.Yield, and returns the final result (or an error,
// which the caller turns into OperationResult.Failed).
type Factory func(ctx context.Context, y Yielder) (any, error)

// task is the Scheduler's bookkeeping for one in-flight or completed
// coroutine.
type task struct {
	name      string
	owningQD  uint32
	cancel    context.CancelFunc
	done      chan struct{}
	yielder   *yielder

	mu     sync.Mutex
	result any
	err    error
	harvested bool
}

// Name returns the human-readable name the coroutine was registered under
// ("<operation> qd=<descriptor>").
func (t *task) Name() string { return t.name }
