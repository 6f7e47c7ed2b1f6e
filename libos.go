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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/catlog"
	"github.com/catnapio/catnap/internal/sched"
)

// LibOS is the facade applications call through: every method either
// returns an error synchronously (the call never touched the scheduler) or
// hands back a QToken to be resolved later with Wait/WaitAny. Every
// *_async-style method runs the same five-step sequence: validate
// arguments, check the operation against the queue's state machine and
// in-flight slots, reserve what needs reserving, schedule a coroutine, and
// return its token.
type LibOS struct {
	cfg       *Config
	transport Transport
	table     *QueueTable
	sched     *sched.Scheduler
	clock     timeutil.Clock

	mu       sync.Mutex
	inFlight map[QDesc]map[QToken]struct{}
}

// NewLibOS constructs a LibOS over the given transport. cfg may be nil,
// meaning DefaultConfig().
func NewLibOS(cfg *Config, transport Transport) *LibOS {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &LibOS{
		cfg:       cfg,
		transport: transport,
		table:     NewQueueTable(),
		sched:     sched.New(nil),
		clock:     timeutil.RealClock(),
		inFlight:  make(map[QDesc]map[QToken]struct{}),
	}
}

func (l *LibOS) track(qd QDesc, tok QToken) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.inFlight[qd]
	if !ok {
		set = make(map[QToken]struct{})
		l.inFlight[qd] = set
	}
	set[tok] = struct{}{}
}

func (l *LibOS) untrack(qd QDesc, tok QToken) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.inFlight[qd]; ok {
		delete(set, tok)
		if len(set) == 0 {
			delete(l.inFlight, qd)
		}
	}
}

// cancelAll cancels every token outstanding against qd (used by
// AsyncClose): their coroutines observe cancellation on their next Yield
// and resolve Failed(ECANCELED). Side effects already caused on the
// transport are not rolled back.
func (l *LibOS) cancelAll(qd QDesc) {
	l.mu.Lock()
	toks := make([]QToken, 0, len(l.inFlight[qd]))
	for tok := range l.inFlight[qd] {
		toks = append(toks, tok)
	}
	l.mu.Unlock()

	for _, tok := range toks {
		if err := l.sched.Cancel(tok); err != nil {
			catlog.Warnf("cancel qd=%d token=%v: %v", qd, tok, err)
		}
	}
}

// scheduleOp registers and runs factory as a coroutine owned by qd,
// tracking the resulting token until it is harvested or cancelled.
func (l *LibOS) scheduleOp(qd QDesc, name string, factory sched.Factory) (QToken, error) {
	tok, err := l.sched.InsertCoroutine(name, uint32(qd), factory)
	if err != nil {
		return 0, err
	}
	l.track(qd, tok)
	return tok, nil
}

// Socket creates a new queue of the given domain and type, unbound and
// unconnected.
func (l *LibOS) Socket(domain Domain, sockType SockType) (QDesc, error) {
	if domain != AF_INET {
		return 0, NewFail(ENOTSUP, "unsupported domain %d", domain)
	}
	if sockType != SOCK_STREAM && sockType != SOCK_DGRAM {
		return 0, NewFail(ENOTSUP, "unsupported socket type %d", sockType)
	}

	tq, err := l.transport.NewQueue(sockType)
	if err != nil {
		return 0, err
	}

	q := newQueue(domain, sockType, tq)
	qd := l.table.Alloc(q)
	catlog.Debugf("socket() -> qd=%d domain=%d type=%d", qd, domain, sockType)
	return qd, nil
}

// Bind assigns local to qd's local endpoint.
func (l *LibOS) Bind(qd QDesc, local SockAddr) error {
	q, err := l.table.Get(qd)
	if err != nil {
		return err
	}
	defer q.release()

	if local.IsWildcard() || local.IsZeroPort() {
		return NewFail(ENOTSUP, "wildcard address or ephemeral port not supported for bind: %s", local)
	}
	if l.table.AddrInUse(local) {
		return NewFail(EADDRINUSE, "address %s already in use", local)
	}
	if err := q.transition([]QueueState{Unbound}, Bound); err != nil {
		return err
	}
	if err := q.tq.Bind(local); err != nil {
		q.setState(Unbound)
		return err
	}
	q.setLocal(local)
	l.table.InsertSocketID(passiveID(local), qd)
	return nil
}

// Listen transitions qd to accepting connections, validating backlog
// against the configured maximum.
func (l *LibOS) Listen(qd QDesc, backlog int) error {
	if backlog < 1 || backlog > l.cfg.MaxBacklog {
		return NewFail(EINVAL, "backlog %d out of range [1, %d]", backlog, l.cfg.MaxBacklog)
	}

	q, err := l.table.Get(qd)
	if err != nil {
		return err
	}
	defer q.release()

	if q.SockType() != SOCK_STREAM {
		return NewFail(ENOTSUP, "listen on non-stream queue")
	}
	if err := q.transition([]QueueState{Bound}, Listening); err != nil {
		return err
	}
	if err := q.tq.Listen(backlog); err != nil {
		q.setState(Bound)
		return err
	}
	return nil
}

// Accept schedules a coroutine that resolves to a new connected queue once
// a peer connects.
func (l *LibOS) Accept(qd QDesc) (QToken, error) {
	q, err := l.table.Get(qd)
	if err != nil {
		return 0, err
	}
	defer q.release()

	if err := q.requireStates(Listening); err != nil {
		return 0, err
	}
	if err := q.reserveAccept(); err != nil {
		return 0, err
	}

	factory := func(ctx context.Context, y sched.Yielder) (any, error) {
		defer q.releaseAccept()

		// Re-fetch from the table rather than closing over q's transport
		// queue directly: if the application closed qd while this coroutine
		// was suspended, the table entry is gone and we must fail EBADF
		// rather than operate on a half-torn-down queue.
		cur, err := l.table.Get(qd)
		if err != nil {
			return nil, err
		}
		defer cur.release()

		newTQ, remote, err := cur.tq.AcceptAsync(ctx, y)
		if err != nil {
			return nil, err
		}

		newQ := newQueue(cur.Domain(), cur.SockType(), newTQ)
		newQ.setState(Connected)
		if local, ok := cur.Local(); ok {
			newQ.setLocal(local)
		}
		newQ.setRemote(remote)
		newQD := l.table.Alloc(newQ)

		return OperationResult{Kind: ResultAccept, NewQD: newQD, Remote: &remote}, nil
	}

	return l.scheduleOp(qd, fmt.Sprintf("accept qd=%d", qd), factory)
}

// Connect schedules a coroutine that resolves once qd is connected to
// remote (or the attempt fails).
func (l *LibOS) Connect(qd QDesc, remote SockAddr) (QToken, error) {
	q, err := l.table.Get(qd)
	if err != nil {
		return 0, err
	}
	defer q.release()

	if err := q.transition([]QueueState{Unbound, Bound}, Connecting); err != nil {
		return 0, err
	}
	if err := q.reserveConnectOrClose(); err != nil {
		q.setState(Unbound)
		return 0, err
	}

	factory := func(ctx context.Context, y sched.Yielder) (any, error) {
		defer q.releaseConnectOrClose()

		cur, err := l.table.Get(qd)
		if err != nil {
			return nil, err
		}
		defer cur.release()

		if err := cur.tq.ConnectAsync(ctx, remote, y); err != nil {
			cur.setState(Bound)
			return nil, err
		}
		cur.setState(Connected)
		cur.setRemote(remote)
		return OperationResult{Kind: ResultConnect}, nil
	}

	return l.scheduleOp(qd, fmt.Sprintf("connect qd=%d", qd), factory)
}

// Push schedules a coroutine that sends buf on a connected stream or
// datagram queue.
func (l *LibOS) Push(qd QDesc, buf catbuf.Buffer) (QToken, error) {
	return l.push(qd, buf, nil)
}

// Pushto schedules a coroutine that sends buf to remote on a datagram
// queue that need not be connected.
func (l *LibOS) Pushto(qd QDesc, buf catbuf.Buffer, remote SockAddr) (QToken, error) {
	return l.push(qd, buf, &remote)
}

func (l *LibOS) push(qd QDesc, buf catbuf.Buffer, remote *SockAddr) (QToken, error) {
	if buf.Len() == 0 {
		return 0, NewFail(EINVAL, "zero-length push buffer")
	}

	q, err := l.table.Get(qd)
	if err != nil {
		return 0, err
	}
	defer q.release()

	if remote != nil && q.SockType() != SOCK_DGRAM {
		return 0, NewFail(ENOTSUP, "pushto on a non-datagram queue")
	}
	allowed := []QueueState{Connected}
	if remote != nil {
		allowed = []QueueState{Bound, Connected}
	}
	if err := q.requireStates(allowed...); err != nil {
		return 0, err
	}

	factory := func(ctx context.Context, y sched.Yielder) (any, error) {
		cur, err := l.table.Get(qd)
		if err != nil {
			return nil, err
		}
		defer cur.release()

		if err := cur.tq.SendAsync(ctx, buf, remote, y); err != nil {
			return nil, err
		}
		return OperationResult{Kind: ResultPush}, nil
	}

	name := fmt.Sprintf("push qd=%d", qd)
	if remote != nil {
		name = fmt.Sprintf("pushto qd=%d", qd)
	}
	return l.scheduleOp(qd, name, factory)
}

// Pop schedules a coroutine that reads up to size bytes (0 meaning the
// configured default) from qd.
func (l *LibOS) Pop(qd QDesc, size int) (QToken, error) {
	if size == 0 {
		size = l.cfg.MaxPopSize
	} else if size < 0 {
		return 0, NewFail(EINVAL, "negative pop size %d", size)
	} else if size > l.cfg.MaxPopSize {
		return 0, NewFail(EINVAL, "pop size %d exceeds max %d", size, l.cfg.MaxPopSize)
	}

	q, err := l.table.Get(qd)
	if err != nil {
		return 0, err
	}
	defer q.release()

	if err := q.requireStates(Connected, Bound); err != nil {
		return 0, err
	}

	factory := func(ctx context.Context, y sched.Yielder) (any, error) {
		cur, err := l.table.Get(qd)
		if err != nil {
			return nil, err
		}
		defer cur.release()

		remote, buf, err := cur.tq.RecvAsync(ctx, size, y)
		if err != nil {
			return nil, err
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		buf.Release()
		return OperationResult{Kind: ResultPop, Remote: remote, Buffer: out}, nil
	}

	return l.scheduleOp(qd, fmt.Sprintf("pop qd=%d", qd), factory)
}

// AsyncClose schedules qd's teardown: new operations are rejected
// immediately with EBADF, every operation currently in flight on qd is
// cancelled, and once the transport confirms teardown the descriptor is
// freed.
func (l *LibOS) AsyncClose(qd QDesc) (QToken, error) {
	q, err := l.table.Get(qd)
	if err != nil {
		return 0, err
	}
	defer q.release()

	if err := q.transition(
		[]QueueState{Unbound, Bound, Listening, Connecting, Connected},
		Closing,
	); err != nil {
		return 0, err
	}

	l.cancelAll(qd)

	factory := func(ctx context.Context, y sched.Yielder) (any, error) {
		cur, err := l.table.Get(qd)
		if err != nil {
			return nil, err
		}
		defer cur.release()

		err = cur.tq.CloseAsync(ctx, y)
		cur.setState(Closed)
		if local, ok := cur.Local(); ok {
			l.table.RemoveSocketID(passiveID(local))
		}
		if _, ferr := l.table.Free(qd); ferr != nil {
			catlog.Errorf("close qd=%d: free after teardown: %v", qd, ferr)
		}
		if err != nil {
			return nil, err
		}
		return OperationResult{Kind: ResultClose}, nil
	}

	return l.scheduleOp(qd, fmt.Sprintf("close qd=%d", qd), factory)
}

// Wait blocks until token completes or timeout elapses (0 meaning
// forever), returning the owning descriptor and the operation's result. A
// non-nil error here means the wait itself failed (unknown token, timeout,
// double harvest); a failed *operation* is reported as a Failed result with
// a nil error.
func (l *LibOS) Wait(token QToken, timeout time.Duration) (QDesc, OperationResult, error) {
	qdRaw, resAny, opErr, waitErr := l.sched.Wait(token, timeout)
	if waitErr != nil {
		return 0, OperationResult{}, waitErr
	}
	qd := QDesc(qdRaw)
	l.untrack(qd, token)
	if opErr != nil {
		return qd, OperationResult{Kind: ResultFailed, Err: opErr}, nil
	}
	res, _ := resAny.(OperationResult)
	return qd, res, nil
}

// WaitAny is like Wait but resolves the first of several tokens to
// complete, also returning its index in tokens.
func (l *LibOS) WaitAny(tokens []QToken, timeout time.Duration) (int, QDesc, OperationResult, error) {
	idx, qdRaw, resAny, opErr, waitErr := l.sched.WaitAny(tokens, timeout)
	if waitErr != nil {
		return idx, 0, OperationResult{}, waitErr
	}
	qd := QDesc(qdRaw)
	l.untrack(qd, tokens[idx])
	if opErr != nil {
		return idx, qd, OperationResult{Kind: ResultFailed, Err: opErr}, nil
	}
	res, _ := resAny.(OperationResult)
	return idx, qd, res, nil
}

// Shutdown hard-closes every remaining queue, for use at process exit once
// no more application code will call into the LibOS.
func (l *LibOS) Shutdown() {
	for _, q := range l.table.Drain() {
		q.tq.HardClose()
	}
}
