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

// Package memory is an in-process loopback Transport: two queues exchange
// bytes over buffered Go channels instead of a kernel socket or a NIC.
// There is no real wire, so it never drops, reorders, or fragments --
// useful for the facade's own tests and for catnap-echo's -sim mode, not
// for anything that needs actual network behavior.
package memory

import (
	"context"
	"sync"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

// Network is a shared loopback fabric. Queues created from the same
// Network can connect to and exchange datagrams with each other by
// address; queues from different Networks cannot see each other.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*listener
	datagrams map[string]chan datagramMsg
	nextPort  uint16
}

// New constructs an empty Network.
func New() *Network {
	return &Network{
		listeners: make(map[string]*listener),
		datagrams: make(map[string]chan datagramMsg),
		nextPort:  49152, // IANA ephemeral range start
	}
}

func (n *Network) allocEphemeral(addr catnap.SockAddr) catnap.SockAddr {
	n.mu.Lock()
	defer n.mu.Unlock()
	addr.Port = n.nextPort
	n.nextPort++
	return addr
}

// NewQueue implements catnap.Transport.
func (n *Network) NewQueue(sockType catnap.SockType) (catnap.TransportQueue, error) {
	switch sockType {
	case catnap.SOCK_STREAM:
		return &streamQueue{net: n}, nil
	case catnap.SOCK_DGRAM:
		return &datagramQueue{net: n}, nil
	default:
		return nil, catnap.NewFail(catnap.ENOTSUP, "memory transport: unsupported socket type %d", sockType)
	}
}

type listener struct {
	pending chan pendingConn
}

type pendingConn struct {
	peer   *streamQueue
	remote catnap.SockAddr
}

type datagramMsg struct {
	remote catnap.SockAddr
	buf    catbuf.Buffer
}

// doAsync runs work on its own goroutine and suspends the calling
// coroutine on y until it finishes or ctx ends, whichever comes first.
// work itself must select on ctx.Done() for anything that can block
// indefinitely, or its goroutine outlives a cancelled caller.
func doAsync(ctx context.Context, y sched.Yielder, work func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- work()
		y.Wake()
	}()
	if err := y.Yield(ctx); err != nil {
		return mapCancel(err)
	}
	return <-done
}

func mapCancel(err error) error {
	if catnap.IsFail(err, catnap.ECANCELED) {
		return err
	}
	return catnap.NewFail(catnap.ECANCELED, "%v", err)
}

func chanSendBuf(ctx context.Context, ch chan<- catbuf.Buffer, buf catbuf.Buffer) error {
	select {
	case ch <- buf:
		return nil
	case <-ctx.Done():
		buf.Release()
		return ctx.Err()
	}
}

func chanRecvBuf(ctx context.Context, ch <-chan catbuf.Buffer) (catbuf.Buffer, error) {
	select {
	case b, ok := <-ch:
		if !ok {
			return catbuf.Buffer{}, catnap.NewFail(catnap.ECONNRESET, "peer closed")
		}
		return b, nil
	case <-ctx.Done():
		return catbuf.Buffer{}, ctx.Err()
	}
}

func chanSendConn(ctx context.Context, ch chan<- pendingConn, pc pendingConn) error {
	select {
	case ch <- pc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func chanRecvConn(ctx context.Context, ch <-chan pendingConn) (pendingConn, error) {
	select {
	case pc := <-ch:
		return pc, nil
	case <-ctx.Done():
		return pendingConn{}, ctx.Err()
	}
}

func chanSendMsg(ctx context.Context, ch chan<- datagramMsg, m datagramMsg) error {
	select {
	case ch <- m:
		return nil
	case <-ctx.Done():
		m.buf.Release()
		return ctx.Err()
	}
}

func chanRecvMsg(ctx context.Context, ch <-chan datagramMsg) (datagramMsg, error) {
	select {
	case m, ok := <-ch:
		if !ok {
			return datagramMsg{}, catnap.NewFail(catnap.ECONNRESET, "peer closed")
		}
		return m, nil
	case <-ctx.Done():
		return datagramMsg{}, ctx.Err()
	}
}
