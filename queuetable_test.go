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

import (
	"net/netip"
	"testing"
)

func newTestQueue() *Queue {
	return newQueue(AF_INET, SOCK_STREAM, nil)
}

func TestQueueTableAllocReusesSmallestFree(t *testing.T) {
	table := NewQueueTable()

	qd0 := table.Alloc(newTestQueue())
	qd1 := table.Alloc(newTestQueue())
	qd2 := table.Alloc(newTestQueue())
	if qd0 != 0 || qd1 != 1 || qd2 != 2 {
		t.Fatalf("got descriptors %d, %d, %d, want 0, 1, 2", qd0, qd1, qd2)
	}

	if _, err := table.Free(qd1); err != nil {
		t.Fatalf("Free(%d): %v", qd1, err)
	}

	qd3 := table.Alloc(newTestQueue())
	if qd3 != qd1 {
		t.Errorf("Alloc after Free(%d) = %d, want the reused descriptor %d", qd1, qd3, qd1)
	}
}

func TestQueueTableGetMissing(t *testing.T) {
	table := NewQueueTable()
	if _, err := table.Get(QDesc(42)); !IsFail(err, EBADF) {
		t.Errorf("Get(missing) err = %v, want EBADF", err)
	}
}

func TestQueueTableGetBumpsRefcount(t *testing.T) {
	table := NewQueueTable()
	q := newTestQueue()
	qd := table.Alloc(q)

	if got := q.refCount(); got != 1 {
		t.Fatalf("refCount before Get = %d, want 1", got)
	}
	if _, err := table.Get(qd); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := q.refCount(); got != 2 {
		t.Errorf("refCount after Get = %d, want 2", got)
	}
}

func TestQueueTableFreeMissing(t *testing.T) {
	table := NewQueueTable()
	if _, err := table.Free(QDesc(7)); !IsFail(err, EBADF) {
		t.Errorf("Free(missing) err = %v, want EBADF", err)
	}
}

func TestQueueTableAddrInUse(t *testing.T) {
	table := NewQueueTable()
	local := SockAddr{Addr: netip.MustParseAddr("10.0.0.1"), Port: 80}

	if table.AddrInUse(local) {
		t.Fatalf("AddrInUse before insert = true, want false")
	}

	qd := table.Alloc(newTestQueue())
	table.InsertSocketID(passiveID(local), qd)
	if !table.AddrInUse(local) {
		t.Errorf("AddrInUse after insert = false, want true")
	}

	table.RemoveSocketID(passiveID(local))
	if table.AddrInUse(local) {
		t.Errorf("AddrInUse after remove = true, want false")
	}
}

func TestQueueTableDrainReturnsEveryQueue(t *testing.T) {
	table := NewQueueTable()
	q1 := table.Alloc(newTestQueue())
	_ = q1
	table.Alloc(newTestQueue())

	drained := table.Drain()
	if len(drained) != 2 {
		t.Errorf("Drain() returned %d queues, want 2", len(drained))
	}
}
