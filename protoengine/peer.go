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

// Package protoengine defines the contract protocol engines satisfy to
// sit behind the IPv4 demultiplexer, and Peer, which owns one engine per
// protocol the way a network stack's control block owns its protocol
// handlers.
package protoengine

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/catnapio/catnap/internal/ipv4"
)

// Pinger is implemented by the ICMPv4 engine: it lets a caller measure
// round-trip time to a destination the way ping(8) does.
type Pinger interface {
	Ping(dest netip.Addr, timeout time.Duration) (time.Duration, error)
}

// Peer owns the three protocol engines catnap ships with and registers
// each of them as the IPv4 demux's Engine for its protocol number.
// Grounded on the one-struct-fans-out-to-per-protocol-handles shape used
// throughout the inetstack's peer abstraction: receive dispatches by
// protocol field, ping is ICMP-only.
type Peer struct {
	LocalAddr netip.Addr

	ICMPv4 ipv4.Engine
	TCP    ipv4.Engine
	UDP    ipv4.Engine
}

// NewPeer builds a Peer and wires its three engines into demux under
// their respective protocol numbers.
func NewPeer(localAddr netip.Addr, demux *ipv4.Demux, icmpv4, tcp, udp ipv4.Engine) *Peer {
	p := &Peer{LocalAddr: localAddr, ICMPv4: icmpv4, TCP: tcp, UDP: udp}
	demux.Register(ipv4.ProtoICMP, icmpv4)
	demux.Register(ipv4.ProtoTCP, tcp)
	demux.Register(ipv4.ProtoUDP, udp)
	return p
}

// Ping measures round-trip time to dest via the ICMPv4 engine, if it
// implements Pinger.
func (p *Peer) Ping(dest netip.Addr, timeout time.Duration) (time.Duration, error) {
	pinger, ok := p.ICMPv4.(Pinger)
	if !ok {
		return 0, fmt.Errorf("protoengine: ICMPv4 engine does not support ping")
	}
	return pinger.Ping(dest, timeout)
}
