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

// Package ipv4 is catnap's IPv4 demultiplexer: it parses an RFC 791
// header and dispatches the payload to the matching protocol engine.
// There is no fragmentation, option processing, or reassembly -- catnap
// runs over links where the application controls both ends and simply
// drops anything it cannot parse or isn't addressed to it.
package ipv4

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Protocol is an IPv4 protocol number (RFC 790).
type Protocol uint8

const (
	ProtoICMP Protocol = 1
	ProtoTCP  Protocol = 6
	ProtoUDP  Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtoICMP:
		return "ICMP"
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

const minHeaderLen = 20

// Header is a parsed (not necessarily option-free) IPv4 header.
type Header struct {
	VersionIHL  uint8
	TOS         uint8
	TotalLength uint16
	Identifier  uint16
	FlagsFragOff uint16
	TTL         uint8
	Protocol    Protocol
	Checksum    uint16
	Src         netip.Addr
	Dst         netip.Addr
}

// IHL returns the header length in bytes, as encoded in the low nibble of
// VersionIHL.
func (h Header) IHL() int {
	return int(h.VersionIHL&0x0f) * 4
}

var errTooShort = fmt.Errorf("ipv4: packet shorter than a minimum header")
var errBadVersion = fmt.Errorf("ipv4: not version 4")
var errBadIHL = fmt.Errorf("ipv4: header length field out of range")
var errShortForIHL = fmt.Errorf("ipv4: packet shorter than its own header length")
var errShortForTotal = fmt.Errorf("ipv4: packet shorter than its total length field")

// Parse reads an IPv4 header from the front of buf and returns it along
// with the payload that follows (options stripped, trailing padding past
// TotalLength stripped). It validates only what is needed to safely index
// into buf: version, IHL bounds, and that buf is long enough for both.
// Checksum is not verified -- the link below catnap is assumed reliable
// within a single host or a test harness, matching the scope in the data
// model.
func Parse(buf []byte) (Header, []byte, error) {
	if len(buf) < minHeaderLen {
		return Header{}, nil, errTooShort
	}

	var h Header
	h.VersionIHL = buf[0]
	if h.VersionIHL>>4 != 4 {
		return Header{}, nil, errBadVersion
	}
	ihl := h.IHL()
	if ihl < minHeaderLen {
		return Header{}, nil, errBadIHL
	}
	if len(buf) < ihl {
		return Header{}, nil, errShortForIHL
	}

	h.TOS = buf[1]
	h.TotalLength = binary.BigEndian.Uint16(buf[2:4])
	h.Identifier = binary.BigEndian.Uint16(buf[4:6])
	h.FlagsFragOff = binary.BigEndian.Uint16(buf[6:8])
	h.TTL = buf[8]
	h.Protocol = Protocol(buf[9])
	h.Checksum = binary.BigEndian.Uint16(buf[10:12])
	h.Src = netip.AddrFrom4([4]byte{buf[12], buf[13], buf[14], buf[15]})
	h.Dst = netip.AddrFrom4([4]byte{buf[16], buf[17], buf[18], buf[19]})

	total := int(h.TotalLength)
	if total < ihl || len(buf) < total {
		return Header{}, nil, errShortForTotal
	}

	return h, buf[ihl:total], nil
}
