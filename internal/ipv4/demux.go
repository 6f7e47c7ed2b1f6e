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

package ipv4

import (
	"net/netip"

	"github.com/catnapio/catnap/internal/catlog"
)

// Engine receives a fully demultiplexed IPv4 payload. Implementations
// must never block and must never let a malformed payload escape as a
// panic -- the demux has already done the IPv4-layer validation: a
// protocol engine only has to cope with garbage at its own layer.
type Engine interface {
	Receive(header Header, payload []byte)
}

// Demux dispatches parsed IPv4 datagrams addressed to Local (or the IPv4
// broadcast address) to the registered Engine for their protocol number.
// A datagram that fails to parse, isn't addressed to us, or names a
// protocol with no registered Engine is silently dropped -- logged, never
// propagated as an error, matching an IPv4 receiver's required behavior
// on the public Internet.
type Demux struct {
	Local    netip.Addr
	Engines  map[Protocol]Engine
}

// NewDemux constructs a Demux bound to local with no engines registered;
// callers add them with Register before the first Dispatch.
func NewDemux(local netip.Addr) *Demux {
	return &Demux{Local: local, Engines: make(map[Protocol]Engine)}
}

// Register installs engine as the handler for proto, replacing anything
// previously registered.
func (d *Demux) Register(proto Protocol, engine Engine) {
	d.Engines[proto] = engine
}

// Dispatch parses buf as an IPv4 datagram and routes it to the matching
// engine. It never returns an error: every failure mode is a silent drop --
// a demultiplexer has no one to report to except a link layer that already
// delivered the bytes.
func (d *Demux) Dispatch(buf []byte) {
	header, payload, err := Parse(buf)
	if err != nil {
		catlog.Debugf("ipv4: dropping packet: %v", err)
		return
	}

	if header.Dst != d.Local && !isBroadcast(header.Dst) {
		catlog.Debugf("ipv4: dropping packet: not addressed to us (dst=%s)", header.Dst)
		return
	}

	engine, ok := d.Engines[header.Protocol]
	if !ok {
		catlog.Debugf("ipv4: dropping packet: no engine for protocol %s", header.Protocol)
		return
	}

	engine.Receive(header, payload)
}

func isBroadcast(addr netip.Addr) bool {
	return addr.Is4() && addr.As4() == [4]byte{255, 255, 255, 255}
}
