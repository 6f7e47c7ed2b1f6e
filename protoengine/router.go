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

package protoengine

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/catnapio/catnap/internal/ipv4"
)

// Router is a perfect, in-process wire connecting several hosts' IPv4
// demultiplexers: it exists so a single test process can run more than
// one Peer (e.g. a ping client and server) without a real NIC. Each
// delivery runs on its own goroutine so Send never recurses synchronously
// into the destination's receive path.
type Router struct {
	mu    sync.Mutex
	hosts map[netip.Addr]*ipv4.Demux
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{hosts: make(map[netip.Addr]*ipv4.Demux)}
}

// AddHost registers demux as the receiver for traffic addressed to addr.
func (r *Router) AddHost(addr netip.Addr, demux *ipv4.Demux) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[addr] = demux
}

// Send frames payload with a minimal IPv4 header and delivers it to the
// host registered at dest, if any.
func (r *Router) Send(src, dest netip.Addr, proto ipv4.Protocol, payload []byte) error {
	r.mu.Lock()
	demux, ok := r.hosts[dest]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("protoengine: no host registered at %s", dest)
	}

	buf := BuildHeader(src, dest, proto, payload)
	go demux.Dispatch(buf)
	return nil
}

// SenderFor returns a Sender that frames and routes payloads as coming
// from local with the given protocol number.
func (r *Router) SenderFor(local netip.Addr, proto ipv4.Protocol) Sender {
	return &routerSender{router: r, local: local, proto: proto}
}

type routerSender struct {
	router *Router
	local  netip.Addr
	proto  ipv4.Protocol
}

func (s *routerSender) Send(dest netip.Addr, payload []byte) error {
	return s.router.Send(s.local, dest, s.proto, payload)
}
