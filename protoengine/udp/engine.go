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

// Package udp is catnap's UDP protocol engine: it parses the UDP header
// far enough to route a datagram to a registered local-port listener.
// The checksum field is not verified, and there is no reassembly.
package udp

import (
	"encoding/binary"
	"net/netip"
	"sync"

	"github.com/catnapio/catnap/internal/catlog"
	"github.com/catnapio/catnap/internal/ipv4"
)

const headerLen = 8 // src port, dst port, length, checksum

// Listener receives a UDP payload addressed to the port it was
// registered under.
type Listener interface {
	Receive(src netip.Addr, srcPort uint16, payload []byte)
}

// Engine dispatches inbound UDP datagrams to per-port Listeners.
type Engine struct {
	mu        sync.Mutex
	listeners map[uint16]Listener
}

// NewEngine constructs an Engine with no listeners registered.
func NewEngine() *Engine {
	return &Engine{listeners: make(map[uint16]Listener)}
}

// RegisterListener installs l as the handler for port.
func (e *Engine) RegisterListener(port uint16, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[port] = l
}

// RemoveListener forgets whatever is registered for port.
func (e *Engine) RemoveListener(port uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, port)
}

// Receive implements ipv4.Engine.
func (e *Engine) Receive(header ipv4.Header, payload []byte) {
	if len(payload) < headerLen {
		catlog.Debugf("udp: dropping short packet from %s (%d bytes)", header.Src, len(payload))
		return
	}

	srcPort := binary.BigEndian.Uint16(payload[0:2])
	dstPort := binary.BigEndian.Uint16(payload[2:4])
	length := binary.BigEndian.Uint16(payload[4:6])
	if int(length) > len(payload) || length < headerLen {
		catlog.Debugf("udp: dropping packet with bad length field from %s", header.Src)
		return
	}

	e.mu.Lock()
	l, ok := e.listeners[dstPort]
	e.mu.Unlock()
	if !ok {
		catlog.Debugf("udp: dropping packet for unbound port %d from %s", dstPort, header.Src)
		return
	}

	l.Receive(header.Src, srcPort, payload[headerLen:length])
}
