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

package udp_test

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/catnapio/catnap/internal/ipv4"
	"github.com/catnapio/catnap/protoengine/udp"
)

type recordingListener struct {
	src     netip.Addr
	srcPort uint16
	payload []byte
	called  bool
}

func (l *recordingListener) Receive(src netip.Addr, srcPort uint16, payload []byte) {
	l.src = src
	l.srcPort = srcPort
	l.payload = append([]byte(nil), payload...)
	l.called = true
}

func buildUDP(srcPort, dstPort uint16, payload []byte) []byte {
	total := 8 + len(payload)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(total))
	copy(buf[8:], payload)
	return buf
}

func TestEngineRoutesToRegisteredPort(t *testing.T) {
	eng := udp.NewEngine()
	l := &recordingListener{}
	eng.RegisterListener(53, l)

	src := netip.MustParseAddr("10.0.0.1")
	header := ipv4.Header{Src: src, Protocol: ipv4.ProtoUDP}
	eng.Receive(header, buildUDP(4000, 53, []byte("query")))

	if !l.called {
		t.Fatalf("listener never called")
	}
	if string(l.payload) != "query" {
		t.Errorf("payload = %q, want %q", l.payload, "query")
	}
	if l.srcPort != 4000 {
		t.Errorf("srcPort = %d, want 4000", l.srcPort)
	}
	if l.src != src {
		t.Errorf("src = %v, want %v", l.src, src)
	}
}

func TestEngineDropsUnboundPort(t *testing.T) {
	eng := udp.NewEngine()
	l := &recordingListener{}
	eng.RegisterListener(53, l)

	header := ipv4.Header{Src: netip.MustParseAddr("10.0.0.1"), Protocol: ipv4.ProtoUDP}
	eng.Receive(header, buildUDP(4000, 99, []byte("query")))

	if l.called {
		t.Fatalf("listener called for unregistered port")
	}
}

func TestEngineDropsShortPacket(t *testing.T) {
	eng := udp.NewEngine()
	l := &recordingListener{}
	eng.RegisterListener(53, l)

	header := ipv4.Header{Src: netip.MustParseAddr("10.0.0.1"), Protocol: ipv4.ProtoUDP}
	eng.Receive(header, []byte{1, 2, 3})

	if l.called {
		t.Fatalf("listener called for short packet")
	}
}

func TestRemoveListener(t *testing.T) {
	eng := udp.NewEngine()
	l := &recordingListener{}
	eng.RegisterListener(53, l)
	eng.RemoveListener(53)

	header := ipv4.Header{Src: netip.MustParseAddr("10.0.0.1"), Protocol: ipv4.ProtoUDP}
	eng.Receive(header, buildUDP(4000, 53, []byte("query")))

	if l.called {
		t.Fatalf("listener called after removal")
	}
}
