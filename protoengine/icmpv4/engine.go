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

// Package icmpv4 is catnap's ICMPv4 protocol engine: enough of RFC 792 to
// answer echo requests and time echo replies for Peer.Ping. There is no
// destination-unreachable, redirect, or time-exceeded handling -- those
// remain a Non-goal.
package icmpv4

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/catnapio/catnap/internal/catlog"
	"github.com/catnapio/catnap/internal/ipv4"
	"github.com/catnapio/catnap/protoengine"
)

const (
	typeEchoReply   = 0
	typeEchoRequest = 8
	headerLen       = 8 // type, code, checksum, identifier, sequence
)

type pending struct {
	start time.Time
	done  chan time.Duration
}

// Engine answers ICMPv4 echo requests and implements protoengine.Pinger
// by tracking its own outstanding echo requests by identifier.
type Engine struct {
	local  netip.Addr
	sender protoengine.Sender

	mu      sync.Mutex
	nextID  uint16
	pending map[uint16]pending
}

// NewEngine constructs an Engine that sends through sender and answers
// echo requests as local.
func NewEngine(local netip.Addr, sender protoengine.Sender) *Engine {
	return &Engine{local: local, sender: sender, pending: make(map[uint16]pending)}
}

// Receive implements ipv4.Engine.
func (e *Engine) Receive(header ipv4.Header, payload []byte) {
	if len(payload) < headerLen {
		catlog.Debugf("icmpv4: dropping short packet from %s (%d bytes)", header.Src, len(payload))
		return
	}

	typ := payload[0]
	id := binary.BigEndian.Uint16(payload[4:6])

	switch typ {
	case typeEchoRequest:
		e.reply(header.Src, payload)
	case typeEchoReply:
		e.complete(id)
	default:
		catlog.Debugf("icmpv4: dropping unsupported type %d from %s", typ, header.Src)
	}
}

func (e *Engine) reply(dest netip.Addr, request []byte) {
	if e.sender == nil {
		return
	}
	reply := make([]byte, len(request))
	copy(reply, request)
	reply[0] = typeEchoReply
	reply[2], reply[3] = 0, 0 // checksum left zero; see protoengine.BuildHeader
	if err := e.sender.Send(dest, reply); err != nil {
		catlog.Warnf("icmpv4: echo reply to %s: %v", dest, err)
	}
}

func (e *Engine) complete(id uint16) {
	e.mu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	if ok {
		p.done <- time.Since(p.start)
	}
}

// Ping sends an echo request to dest and blocks for a reply, up to
// timeout (0 meaning forever).
func (e *Engine) Ping(dest netip.Addr, timeout time.Duration) (time.Duration, error) {
	if e.sender == nil {
		return 0, fmt.Errorf("icmpv4: no sender configured")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	done := make(chan time.Duration, 1)
	e.pending[id] = pending{start: time.Now(), done: done}
	e.mu.Unlock()

	request := make([]byte, headerLen)
	request[0] = typeEchoRequest
	binary.BigEndian.PutUint16(request[4:6], id)

	if err := e.sender.Send(dest, request); err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return 0, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case rtt := <-done:
		return rtt, nil
	case <-timeoutCh:
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return 0, fmt.Errorf("icmpv4: ping to %s timed out", dest)
	}
}
