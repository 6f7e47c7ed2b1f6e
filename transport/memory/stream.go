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

package memory

import (
	"context"
	"sync"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

const streamBacklogCap = 64

// streamQueue is a SOCK_STREAM catnap.TransportQueue. Each message pushed
// is delivered to a single Pop whole -- there is no byte-stream
// coalescing -- which keeps the stub simple at the cost of not exercising
// partial-read behavior real stream sockets have.
type streamQueue struct {
	net *Network

	mu     sync.Mutex
	local  catnap.SockAddr
	remote catnap.SockAddr

	acceptCh chan pendingConn // set by Listen

	sendCh chan catbuf.Buffer // set by Connect/Accept
	recvCh chan catbuf.Buffer

	closeOnce sync.Once
}

func (q *streamQueue) Bind(local catnap.SockAddr) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if local.IsZeroPort() {
		local = q.net.allocEphemeral(local)
	}
	q.local = local
	return nil
}

func (q *streamQueue) Listen(backlog int) error {
	l := &listener{pending: make(chan pendingConn, backlog)}

	q.mu.Lock()
	addr := q.local
	q.acceptCh = l.pending
	q.mu.Unlock()

	q.net.mu.Lock()
	q.net.listeners[addr.String()] = l
	q.net.mu.Unlock()
	return nil
}

func (q *streamQueue) AcceptAsync(ctx context.Context, y sched.Yielder) (catnap.TransportQueue, catnap.SockAddr, error) {
	q.mu.Lock()
	ch := q.acceptCh
	q.mu.Unlock()

	var pc pendingConn
	err := doAsync(ctx, y, func() error {
		var workErr error
		pc, workErr = chanRecvConn(ctx, ch)
		return workErr
	})
	if err != nil {
		return nil, catnap.SockAddr{}, err
	}
	return pc.peer, pc.remote, nil
}

func (q *streamQueue) ConnectAsync(ctx context.Context, remote catnap.SockAddr, y sched.Yielder) error {
	q.net.mu.Lock()
	l, ok := q.net.listeners[remote.String()]
	q.net.mu.Unlock()
	if !ok {
		return catnap.NewFail(catnap.ECONNREFUSED, "no listener at %s", remote)
	}

	q.mu.Lock()
	if q.local.IsZeroPort() {
		q.local = q.net.allocEphemeral(q.local)
	}
	local := q.local
	q.mu.Unlock()

	c2s := make(chan catbuf.Buffer, streamBacklogCap)
	s2c := make(chan catbuf.Buffer, streamBacklogCap)

	server := &streamQueue{net: q.net, local: remote, remote: local, sendCh: s2c, recvCh: c2s}

	q.mu.Lock()
	q.remote = remote
	q.sendCh = c2s
	q.recvCh = s2c
	q.mu.Unlock()

	return doAsync(ctx, y, func() error {
		return chanSendConn(ctx, l.pending, pendingConn{peer: server, remote: local})
	})
}

func (q *streamQueue) SendAsync(ctx context.Context, buf catbuf.Buffer, remote *catnap.SockAddr, y sched.Yielder) error {
	if remote != nil {
		buf.Release()
		return catnap.NewFail(catnap.ENOTSUP, "pushto on a stream queue")
	}
	q.mu.Lock()
	ch := q.sendCh
	q.mu.Unlock()
	if ch == nil {
		buf.Release()
		return catnap.NewFail(catnap.EBADF, "queue is not connected")
	}

	return doAsync(ctx, y, func() error {
		return chanSendBuf(ctx, ch, buf)
	})
}

func (q *streamQueue) RecvAsync(ctx context.Context, size int, y sched.Yielder) (*catnap.SockAddr, catbuf.Buffer, error) {
	q.mu.Lock()
	ch := q.recvCh
	q.mu.Unlock()
	if ch == nil {
		return nil, catbuf.Buffer{}, catnap.NewFail(catnap.EBADF, "queue is not connected")
	}

	var buf catbuf.Buffer
	err := doAsync(ctx, y, func() error {
		var workErr error
		buf, workErr = chanRecvBuf(ctx, ch)
		return workErr
	})
	if err != nil {
		return nil, catbuf.Buffer{}, err
	}
	if size > 0 && buf.Len() > size {
		buf.TrimTail(buf.Len() - size)
	}
	return nil, buf, nil
}

func (q *streamQueue) CloseAsync(ctx context.Context, y sched.Yielder) error {
	q.HardClose()
	return nil
}

func (q *streamQueue) HardClose() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		ch := q.sendCh
		q.mu.Unlock()
		if ch != nil {
			close(ch)
		}
	})
}
