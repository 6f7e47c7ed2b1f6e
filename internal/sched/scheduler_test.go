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
	"testing"
	"time"
)

func TestInsertCoroutineCompletesAndHarvests(t *testing.T) {
	s := New(nil)
	tok, err := s.InsertCoroutine("noop", 7, func(ctx context.Context, y Yielder) (any, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}

	qd, result, opErr, waitErr := s.Wait(tok, time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if opErr != nil {
		t.Fatalf("opErr = %v, want nil", opErr)
	}
	if qd != 7 {
		t.Errorf("owning qd = %d, want 7", qd)
	}
	if result != "done" {
		t.Errorf("result = %v, want %q", result, "done")
	}
}

func TestWaitTwiceFailsOnDoubleHarvest(t *testing.T) {
	s := New(nil)
	tok, _ := s.InsertCoroutine("noop", 0, func(ctx context.Context, y Yielder) (any, error) {
		return nil, nil
	})

	if _, _, _, waitErr := s.Wait(tok, time.Second); waitErr != nil {
		t.Fatalf("first Wait: %v", waitErr)
	}
	if _, _, _, waitErr := s.Wait(tok, time.Second); waitErr == nil {
		t.Fatalf("second Wait on the same token succeeded, want an error (unknown task)")
	}
}

func TestYieldSuspendsUntilWake(t *testing.T) {
	s := New(nil)
	tok, err := s.InsertCoroutine("suspend", 0, func(ctx context.Context, y Yielder) (any, error) {
		if err := y.Yield(ctx); err != nil {
			return nil, err
		}
		return "resumed", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}

	// Give the coroutine a moment to reach Yield, then wake it from here,
	// the same way a transport's background goroutine would.
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	task := s.tasks[tok]
	s.mu.Unlock()
	task.yielder.Wake()

	_, result, opErr, waitErr := s.Wait(tok, time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if opErr != nil {
		t.Fatalf("opErr = %v, want nil", opErr)
	}
	if result != "resumed" {
		t.Errorf("result = %v, want %q", result, "resumed")
	}
}

func TestCancelResolvesYieldAsCancelled(t *testing.T) {
	s := New(nil)
	tok, err := s.InsertCoroutine("cancellable", 0, func(ctx context.Context, y Yielder) (any, error) {
		if err := y.Yield(ctx); err != nil {
			return nil, err
		}
		return "should not get here", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.Cancel(tok); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, _, opErr, waitErr := s.Wait(tok, time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if opErr != ErrCancelled {
		t.Errorf("opErr = %v, want ErrCancelled", opErr)
	}
}

func TestWaitTimesOutWithoutHarvesting(t *testing.T) {
	s := New(nil)
	tok, err := s.InsertCoroutine("never-wakes", 0, func(ctx context.Context, y Yielder) (any, error) {
		if err := y.Yield(ctx); err != nil {
			return nil, err
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}

	if _, _, _, waitErr := s.Wait(tok, 10*time.Millisecond); waitErr != ErrTimeout {
		t.Fatalf("Wait err = %v, want ErrTimeout", waitErr)
	}

	// The task must still be pending and harvestable after the timeout.
	s.mu.Lock()
	_, stillTracked := s.tasks[tok]
	s.mu.Unlock()
	if !stillTracked {
		t.Fatalf("task was removed from the scheduler after a wait timeout")
	}

	if err := s.Cancel(tok); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

func TestWaitAnyResolvesFirstCompletion(t *testing.T) {
	s := New(nil)
	slow, err := s.InsertCoroutine("slow", 1, func(ctx context.Context, y Yielder) (any, error) {
		if err := y.Yield(ctx); err != nil {
			return nil, err
		}
		return "slow", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine(slow): %v", err)
	}
	fast, err := s.InsertCoroutine("fast", 2, func(ctx context.Context, y Yielder) (any, error) {
		return "fast", nil
	})
	if err != nil {
		t.Fatalf("InsertCoroutine(fast): %v", err)
	}

	idx, qd, result, opErr, waitErr := s.WaitAny([]TaskHandle{slow, fast}, time.Second)
	if waitErr != nil {
		t.Fatalf("WaitAny: %v", waitErr)
	}
	if opErr != nil {
		t.Fatalf("opErr = %v, want nil", opErr)
	}
	if idx != 1 || qd != 2 || result != "fast" {
		t.Fatalf("WaitAny = (idx=%d, qd=%d, result=%v), want (1, 2, \"fast\")", idx, qd, result)
	}

	s.Cancel(slow)
}
