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

package catnap

import "testing"

func TestTransitionAllowed(t *testing.T) {
	q := newQueue(AF_INET, SOCK_STREAM, nil)
	if err := q.transition([]QueueState{Unbound}, Bound); err != nil {
		t.Fatalf("transition Unbound->Bound: %v", err)
	}
	if got := q.State(); got != Bound {
		t.Errorf("State() = %v, want Bound", got)
	}
}

func TestTransitionDisallowed(t *testing.T) {
	q := newQueue(AF_INET, SOCK_STREAM, nil)
	// Cannot jump straight to Listening from Unbound.
	if err := q.transition([]QueueState{Bound}, Listening); !IsFail(err, EINVAL) {
		t.Fatalf("transition from wrong state err = %v, want EINVAL", err)
	}
	if got := q.State(); got != Unbound {
		t.Errorf("State() after rejected transition = %v, want unchanged Unbound", got)
	}
}

func TestTransitionRejectsOnceClosing(t *testing.T) {
	q := newQueue(AF_INET, SOCK_STREAM, nil)
	q.setState(Closing)
	if err := q.transition([]QueueState{Closing}, Closed); !IsFail(err, EBADF) {
		t.Fatalf("transition from Closing err = %v, want EBADF", err)
	}
}

func TestRequireStates(t *testing.T) {
	q := newQueue(AF_INET, SOCK_STREAM, nil)
	q.setState(Connected)
	if err := q.requireStates(Connected, Bound); err != nil {
		t.Fatalf("requireStates(Connected, Bound) on Connected queue: %v", err)
	}
	if err := q.requireStates(Bound); !IsFail(err, EINVAL) {
		t.Fatalf("requireStates(Bound) on Connected queue err = %v, want EINVAL", err)
	}
}

func TestAcceptReservationIsExclusive(t *testing.T) {
	q := newQueue(AF_INET, SOCK_STREAM, nil)
	if err := q.reserveAccept(); err != nil {
		t.Fatalf("first reserveAccept: %v", err)
	}
	if err := q.reserveAccept(); !IsFail(err, EAGAIN) {
		t.Fatalf("second reserveAccept err = %v, want EAGAIN", err)
	}
	q.releaseAccept()
	if err := q.reserveAccept(); err != nil {
		t.Fatalf("reserveAccept after release: %v", err)
	}
}

func TestQueueStateString(t *testing.T) {
	if got := Connected.String(); got != "Connected" {
		t.Errorf("Connected.String() = %q", got)
	}
	if got := QueueState(99).String(); got != "QueueState(99)" {
		t.Errorf("QueueState(99).String() = %q", got)
	}
}
