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

import "github.com/catnapio/catnap/internal/sched"

// QDesc is an opaque, dense integer descriptor identifying a queue. It is
// stable for the lifetime of the queue and is only reused after the queue
// is freed.
type QDesc uint32

// QToken is an opaque handle for a pending asynchronous operation. It is
// produced by any *_async-style call and consumed exactly once, by Wait or
// WaitAny.
type QToken = sched.TaskHandle

// Domain restricts the address family a queue may use. catnap only speaks
// IPv4.
type Domain int

const (
	AF_INET Domain = iota + 1
)

// SockType is the queue's transport semantics.
type SockType int

const (
	SOCK_STREAM SockType = iota + 1
	SOCK_DGRAM
)
