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

package protoengine_test

import (
	"net/netip"
	"testing"

	"github.com/catnapio/catnap/internal/ipv4"
	"github.com/catnapio/catnap/protoengine"
)

func TestBuildHeaderRoundTripsThroughParse(t *testing.T) {
	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("10.0.0.2")
	payload := []byte("hello")

	buf := protoengine.BuildHeader(src, dst, ipv4.ProtoUDP, payload)

	header, got, err := ipv4.Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if header.Src != src || header.Dst != dst {
		t.Errorf("Src/Dst = %v/%v, want %v/%v", header.Src, header.Dst, src, dst)
	}
	if header.Protocol != ipv4.ProtoUDP {
		t.Errorf("Protocol = %v, want UDP", header.Protocol)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}
