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
	"sync"
	"sync/atomic"
)

// Queue is a socket-like entity: the core per-descriptor state tracked by
// a QueueTable. A Queue is always reached through the QueueTable; callers
// never construct one directly.
type Queue struct {
	domain   Domain
	sockType SockType

	mu     sync.Mutex // guards state, local, remote, and the in-flight slots
	state  QueueState
	local  *SockAddr
	remote *SockAddr

	acceptInFlight         bool
	connectOrCloseInFlight bool

	tq TransportQueue

	// refs counts live holders of this Queue: one for the QueueTable entry,
	// plus one per coroutine that has captured it.
	refs int32
}

func newQueue(domain Domain, sockType SockType, tq TransportQueue) *Queue {
	q := &Queue{
		domain:   domain,
		sockType: sockType,
		state:    Unbound,
		tq:       tq,
		refs:     1,
	}
	return q
}

// capture increments the queue's reference count; call when a coroutine
// closes over the queue.
func (q *Queue) capture() {
	atomic.AddInt32(&q.refs, 1)
}

// release decrements the reference count, returning the count after the
// decrement. It never destroys the queue itself -- Go's GC owns that --
// but a count of zero is the signal that it is safe to consider the queue
// fully drained (used by tests; hard-close at teardown does not consult it).
func (q *Queue) release() int32 {
	return atomic.AddInt32(&q.refs, -1)
}

func (q *Queue) refCount() int32 {
	return atomic.LoadInt32(&q.refs)
}

// Local returns the queue's local endpoint, if bound.
func (q *Queue) Local() (SockAddr, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.local == nil {
		return SockAddr{}, false
	}
	return *q.local, true
}

// Remote returns the queue's remote endpoint, if connected/accepted.
func (q *Queue) Remote() (SockAddr, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remote == nil {
		return SockAddr{}, false
	}
	return *q.remote, true
}

func (q *Queue) setLocal(addr SockAddr) {
	q.mu.Lock()
	q.local = &addr
	q.mu.Unlock()
}

func (q *Queue) setRemote(addr SockAddr) {
	q.mu.Lock()
	q.remote = &addr
	q.mu.Unlock()
}

// reserveAccept reserves the queue's single accept slot, returning EBUSY
// (modeled as EAGAIN) if one is already in flight.
func (q *Queue) reserveAccept() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.acceptInFlight {
		return NewFail(EAGAIN, "accept already in flight")
	}
	q.acceptInFlight = true
	return nil
}

func (q *Queue) releaseAccept() {
	q.mu.Lock()
	q.acceptInFlight = false
	q.mu.Unlock()
}

// reserveConnectOrClose reserves the shared connect/close slot: at most one
// connect or close may be in flight on a queue at a time.
func (q *Queue) reserveConnectOrClose() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.connectOrCloseInFlight {
		return NewFail(EAGAIN, "connect or close already in flight")
	}
	q.connectOrCloseInFlight = true
	return nil
}

func (q *Queue) releaseConnectOrClose() {
	q.mu.Lock()
	q.connectOrCloseInFlight = false
	q.mu.Unlock()
}

// SockType returns the queue's transport semantics (stream or datagram).
func (q *Queue) SockType() SockType { return q.sockType }

// Domain returns the queue's address family.
func (q *Queue) Domain() Domain { return q.domain }
