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
	"testing"
)

func buildPacket(proto Protocol, payload []byte) []byte {
	total := 20 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x45
	buf[2], buf[3] = byte(total>>8), byte(total)
	buf[8] = 64
	buf[9] = byte(proto)
	src := netip.MustParseAddr("10.0.0.1").As4()
	dst := netip.MustParseAddr("10.0.0.2").As4()
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])
	copy(buf[20:], payload)
	return buf
}

func TestParseRoundTrip(t *testing.T) {
	payload := []byte("hello")
	buf := buildPacket(ProtoUDP, payload)

	h, got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Protocol != ProtoUDP {
		t.Errorf("Protocol = %v, want UDP", h.Protocol)
	}
	if h.IHL() != 20 {
		t.Errorf("IHL() = %d, want 20", h.IHL())
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func TestParseRejectsTooShort(t *testing.T) {
	if _, _, err := Parse(make([]byte, 10)); err != errTooShort {
		t.Errorf("err = %v, want errTooShort", err)
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	buf := buildPacket(ProtoTCP, nil)
	buf[0] = 0x55 // version 5
	if _, _, err := Parse(buf); err != errBadVersion {
		t.Errorf("err = %v, want errBadVersion", err)
	}
}

func TestParseRejectsShortForTotal(t *testing.T) {
	buf := buildPacket(ProtoICMP, []byte("abc"))
	buf[2], buf[3] = 0xff, 0xff // total length far exceeds buf
	if _, _, err := Parse(buf); err != errShortForTotal {
		t.Errorf("err = %v, want errShortForTotal", err)
	}
}

func TestProtocolString(t *testing.T) {
	if got := ProtoTCP.String(); got != "TCP" {
		t.Errorf("ProtoTCP.String() = %q, want %q", got, "TCP")
	}
	if got := Protocol(200).String(); got != "Protocol(200)" {
		t.Errorf("Protocol(200).String() = %q, want %q", got, "Protocol(200)")
	}
}
