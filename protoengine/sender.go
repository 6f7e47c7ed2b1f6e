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
	"encoding/binary"
	"net/netip"

	"github.com/catnapio/catnap/internal/ipv4"
)

// Sender is how a protocol engine puts a payload back on the wire
// addressed to dest. Engines do not talk to a Transport directly -- they
// are handed a Sender already bound to their own protocol number and
// local address.
type Sender interface {
	Send(dest netip.Addr, payload []byte) error
}

// BuildHeader serializes a minimal 20-byte IPv4 header (no options) in
// front of payload. Checksum is left zero: nothing downstream in catnap
// verifies it, since the transports in scope either run over a trusted
// loopback fabric or hand framing off to the host kernel.
func BuildHeader(src, dst netip.Addr, proto ipv4.Protocol, payload []byte) []byte {
	total := 20 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x45 // version 4, IHL 5 words
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], uint16(total))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identifier
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags/frag offset
	buf[8] = 64                             // TTL
	buf[9] = byte(proto)
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum
	s4 := src.As4()
	d4 := dst.As4()
	copy(buf[12:16], s4[:])
	copy(buf[16:20], d4[:])
	copy(buf[20:], payload)
	return buf
}
