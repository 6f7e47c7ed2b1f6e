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

	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

// Transport is the abstract contract consumed by the LibOS facade. A
// concrete Transport is either a POSIX socket wrapper
// (transport/posix) or an in-process channel loopback (transport/memory,
// for tests and samples). Implementations must be safe
// for concurrent use by at most one in-flight call per kind (the facade
// enforces that via the queue state machine) but may be called
// concurrently for distinct queues.
type Transport interface {
	// NewQueue allocates a fresh, unbound transport-level handle for a
	// socket of the given type.
	NewQueue(sockType SockType) (TransportQueue, error)
}

// TransportQueue is a single socket's worth of transport-level operations.
type TransportQueue interface {
	// Bind registers local as this queue's local endpoint.
	Bind(local SockAddr) error

	// Listen transitions to accepting connections with the given backlog,
	// already validated to be in [1, Config.MaxBacklog].
	Listen(backlog int) error

	// AcceptAsync suspends on y until a connection is established,
	// returning a handle for the new connection and its remote endpoint.
	AcceptAsync(ctx context.Context, y sched.Yielder) (TransportQueue, SockAddr, error)

	// ConnectAsync suspends on y until remote is connected or the attempt
	// fails.
	ConnectAsync(ctx context.Context, remote SockAddr, y sched.Yielder) error

	// SendAsync writes the entirety of buf (or fails); remote is set for
	// pushto on a datagram queue and nil otherwise. SendAsync always takes
	// ownership of buf -- on success or failure, the implementation (not
	// the caller) is responsible for eventually calling buf.Release().
	SendAsync(ctx context.Context, buf catbuf.Buffer, remote *SockAddr, y sched.Yielder) error

	// RecvAsync returns up to size bytes (0 meaning an implementation
	// default cap); remote is populated for datagram queues.
	RecvAsync(ctx context.Context, size int, y sched.Yielder) (*SockAddr, catbuf.Buffer, error)

	// CloseAsync suspends on y until teardown completes.
	CloseAsync(ctx context.Context, y sched.Yielder) error

	// HardClose performs a synchronous, best-effort release used only at
	// process teardown.
	HardClose()
}

// OperationResult is the tagged union of what a coroutine ultimately
// produces for a QToken to be harvested.
type OperationResult struct {
	Kind   ResultKind
	NewQD  QDesc    // Accept
	Remote *SockAddr // Accept, Pop (datagram)
	Buffer []byte    // Pop
	Err    error     // Failed
}

// ResultKind tags the variant held by an OperationResult.
type ResultKind int

const (
	ResultAccept ResultKind = iota
	ResultConnect
	ResultPush
	ResultPop
	ResultClose
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultAccept:
		return "Accept"
	case ResultConnect:
		return "Connect"
	case ResultPush:
		return "Push"
	case ResultPop:
		return "Pop"
	case ResultClose:
		return "Close"
	case ResultFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
