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

const datagramQueueCap = 256

// datagramQueue is a SOCK_DGRAM catnap.TransportQueue: unconnected
// send/receive addressed by SockAddr, routed through the Network's
// datagram registry.
type datagramQueue struct {
	net *Network

	mu     sync.Mutex
	local  catnap.SockAddr
	remote catnap.SockAddr
	recvCh chan datagramMsg

	closeOnce sync.Once
}

func (q *datagramQueue) Bind(local catnap.SockAddr) error {
	q.mu.Lock()
	if local.IsZeroPort() {
		local = q.net.allocEphemeral(local)
	}
	q.local = local
	q.recvCh = make(chan datagramMsg, datagramQueueCap)
	ch := q.recvCh
	q.mu.Unlock()

	q.net.mu.Lock()
	q.net.datagrams[local.String()] = ch
	q.net.mu.Unlock()
	return nil
}

func (q *datagramQueue) Listen(backlog int) error {
	return catnap.NewFail(catnap.ENOTSUP, "listen on a datagram queue")
}

func (q *datagramQueue) AcceptAsync(ctx context.Context, y sched.Yielder) (catnap.TransportQueue, catnap.SockAddr, error) {
	return nil, catnap.SockAddr{}, catnap.NewFail(catnap.ENOTSUP, "accept on a datagram queue")
}

func (q *datagramQueue) ConnectAsync(ctx context.Context, remote catnap.SockAddr, y sched.Yielder) error {
	q.mu.Lock()
	q.remote = remote
	q.mu.Unlock()
	return nil
}

func (q *datagramQueue) SendAsync(ctx context.Context, buf catbuf.Buffer, remote *catnap.SockAddr, y sched.Yielder) error {
	q.mu.Lock()
	local := q.local
	dest := q.remote
	q.mu.Unlock()
	if remote != nil {
		dest = *remote
	}

	q.net.mu.Lock()
	target, ok := q.net.datagrams[dest.String()]
	q.net.mu.Unlock()
	if !ok {
		buf.Release()
		return catnap.NewFail(catnap.ECONNREFUSED, "no datagram queue bound at %s", dest)
	}

	msg := datagramMsg{remote: local, buf: buf}
	return doAsync(ctx, y, func() error {
		return chanSendMsg(ctx, target, msg)
	})
}

func (q *datagramQueue) RecvAsync(ctx context.Context, size int, y sched.Yielder) (*catnap.SockAddr, catbuf.Buffer, error) {
	q.mu.Lock()
	ch := q.recvCh
	q.mu.Unlock()
	if ch == nil {
		return nil, catbuf.Buffer{}, catnap.NewFail(catnap.EBADF, "queue is not bound")
	}

	var msg datagramMsg
	err := doAsync(ctx, y, func() error {
		var workErr error
		msg, workErr = chanRecvMsg(ctx, ch)
		return workErr
	})
	if err != nil {
		return nil, catbuf.Buffer{}, err
	}
	if size > 0 && msg.buf.Len() > size {
		msg.buf.TrimTail(msg.buf.Len() - size)
	}
	return &msg.remote, msg.buf, nil
}

func (q *datagramQueue) CloseAsync(ctx context.Context, y sched.Yielder) error {
	q.HardClose()
	return nil
}

func (q *datagramQueue) HardClose() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		local := q.local
		q.mu.Unlock()
		q.net.mu.Lock()
		delete(q.net.datagrams, local.String())
		q.net.mu.Unlock()
	})
}
