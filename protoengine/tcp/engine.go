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

// Package tcp is catnap's TCP protocol engine. The handshake, congestion
// control, retransmission, and segment reassembly state machines are a
// Non-goal; this engine parses just enough of the header to route a
// segment to a registered connection and log anything it can't.
package tcp

import (
	"encoding/binary"
	"net/netip"
	"sync"

	"github.com/catnapio/catnap/internal/catlog"
	"github.com/catnapio/catnap/internal/ipv4"
)

const headerLen = 20 // fixed TCP header, no options

// Listener receives a TCP segment's payload and flags, addressed to the
// 4-tuple it registered under.
type Listener interface {
	Receive(srcAddr netip.Addr, srcPort uint16, seq, ack uint32, flags uint8, payload []byte)
}

type tuple struct {
	remote     netip.Addr
	remotePort uint16
	localPort  uint16
}

// Engine dispatches inbound TCP segments to Listeners registered by
// local port and, once connected, by full 4-tuple.
type Engine struct {
	mu         sync.Mutex
	byPort     map[uint16]Listener // listening sockets, keyed by local port only
	byTuple    map[tuple]Listener  // established connections
}

// NewEngine constructs an Engine with nothing registered.
func NewEngine() *Engine {
	return &Engine{byPort: make(map[uint16]Listener), byTuple: make(map[tuple]Listener)}
}

// RegisterListening installs l for any segment addressed to localPort
// that doesn't match a more specific 4-tuple registration.
func (e *Engine) RegisterListening(localPort uint16, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byPort[localPort] = l
}

// RegisterConnection installs l for segments matching the given 4-tuple.
func (e *Engine) RegisterConnection(remote netip.Addr, remotePort, localPort uint16, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byTuple[tuple{remote, remotePort, localPort}] = l
}

// RemoveConnection forgets a 4-tuple registration.
func (e *Engine) RemoveConnection(remote netip.Addr, remotePort, localPort uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.byTuple, tuple{remote, remotePort, localPort})
}

// Receive implements ipv4.Engine.
func (e *Engine) Receive(header ipv4.Header, payload []byte) {
	if len(payload) < headerLen {
		catlog.Debugf("tcp: dropping short segment from %s (%d bytes)", header.Src, len(payload))
		return
	}

	srcPort := binary.BigEndian.Uint16(payload[0:2])
	dstPort := binary.BigEndian.Uint16(payload[2:4])
	seq := binary.BigEndian.Uint32(payload[4:8])
	ack := binary.BigEndian.Uint32(payload[8:12])
	dataOffsetWords := payload[12] >> 4
	flags := payload[13]
	hdrLen := int(dataOffsetWords) * 4
	if hdrLen < headerLen || hdrLen > len(payload) {
		catlog.Debugf("tcp: dropping segment with bad data offset from %s", header.Src)
		return
	}

	e.mu.Lock()
	l, ok := e.byTuple[tuple{header.Src, srcPort, dstPort}]
	if !ok {
		l, ok = e.byPort[dstPort]
	}
	e.mu.Unlock()
	if !ok {
		catlog.Debugf("tcp: dropping segment for unbound port %d from %s", dstPort, header.Src)
		return
	}

	l.Receive(header.Src, srcPort, seq, ack, flags, payload[hdrLen:])
}
