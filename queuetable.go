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
	"container/heap"

	"github.com/jacobsa/syncutil"

	"github.com/catnapio/catnap/internal/catlog"
)

// QueueTable is the process-wide mapping from descriptor to queue, plus
// the secondary socket-identity index used to detect address-in-use at
// bind time. Inbound traffic is not routed through that index; the
// transports route it themselves.
//
// All operations are serialized by an invariant-checking mutex, so no
// caller ever observes the table in an inconsistent state.
type QueueTable struct {
	mu syncutil.InvariantMutex // GUARDED_BY(mu) everything below

	entries map[QDesc]*Queue
	free    minHeap // free descriptors, smallest first
	nextNew QDesc

	byID map[socketID]QDesc
}

// NewQueueTable constructs an empty table.
func NewQueueTable() *QueueTable {
	t := &QueueTable{
		entries: make(map[QDesc]*Queue),
		byID:    make(map[socketID]QDesc),
	}
	heap.Init(&t.free)
	t.mu.Lock()
	t.mu.InitInvariant(func() {
		// A descriptor is live iff an entry exists for it. No free-list entry
		// may also be live, and none may be duplicated in the free list.
		seen := make(map[QDesc]bool)
		for _, qd := range t.free {
			if _, live := t.entries[qd]; live {
				panic("QueueTable: descriptor both live and free")
			}
			if seen[qd] {
				panic("QueueTable: descriptor duplicated in freelist")
			}
			seen[qd] = true
		}
	})
	t.mu.Unlock()
	return t
}

// Alloc assigns the smallest free descriptor to queue, stores it, and
// returns the descriptor.
func (t *QueueTable) Alloc(q *Queue) QDesc {
	t.mu.Lock()
	defer t.mu.Unlock()

	var qd QDesc
	if len(t.free) > 0 {
		qd = heap.Pop(&t.free).(QDesc)
	} else {
		qd = t.nextNew
		t.nextNew++
	}
	t.entries[qd] = q
	return qd
}

// Get returns a shared reference to the queue at qd, bumping its reference
// count, or a *Fail with errno EBADF if qd is not live.
func (t *QueueTable) Get(qd QDesc) (*Queue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.entries[qd]
	if !ok {
		return nil, NewFail(EBADF, "no such queue descriptor %d", qd)
	}
	q.capture()
	return q, nil
}

// Free removes qd from the table and returns the queue so the caller can
// finalize it.
func (t *QueueTable) Free(qd QDesc) (*Queue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.entries[qd]
	if !ok {
		return nil, NewFail(EBADF, "no such queue descriptor %d", qd)
	}
	delete(t.entries, qd)
	heap.Push(&t.free, qd)
	return q, nil
}

// InsertSocketID records that id now belongs to qd.
func (t *QueueTable) InsertSocketID(id socketID, qd QDesc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[id] = qd
}

// RemoveSocketID forgets id, if present.
func (t *QueueTable) RemoveSocketID(id socketID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// AddrInUse reports whether a Passive identity for local is already
// claimed.
func (t *QueueTable) AddrInUse(local SockAddr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byID[passiveID(local)]
	return ok
}

// Drain returns every remaining queue in the table, for use only at
// process teardown: the caller hard-closes each one and logs, but does not
// fail on, any entry it cannot make sense of.
func (t *QueueTable) Drain() []*Queue {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Queue, 0, len(t.entries))
	for qd, q := range t.entries {
		if q == nil {
			catlog.Errorf("QueueTable.Drain: nil queue at descriptor %d, skipping", qd)
			continue
		}
		out = append(out, q)
	}
	return out
}

// minHeap is a container/heap of QDesc, used to hand out the smallest free
// descriptor first.
type minHeap []QDesc

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(QDesc)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
