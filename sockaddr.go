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

package catnap

import (
	"fmt"
	"net/netip"
)

// SockAddr is an IPv4 endpoint: an address and a port.
type SockAddr struct {
	Addr netip.Addr
	Port uint16
}

func (s SockAddr) String() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// IsWildcard reports whether s names the unspecified address (0.0.0.0).
func (s SockAddr) IsWildcard() bool {
	return s.Addr == netip.IPv4Unspecified() || !s.Addr.IsValid()
}

// IsZeroPort reports whether s asks for an ephemeral port.
func (s SockAddr) IsZeroPort() bool {
	return s.Port == 0
}

// socketID is the secondary index key maintained by the queue table: a
// Passive identity, keyed on the local endpoint alone. Accepted and
// connected queues are never indexed this way -- see DESIGN.md for why an
// Active (local+remote) identity would just be dead bookkeeping.
type socketID struct {
	local SockAddr
}

func passiveID(local SockAddr) socketID {
	return socketID{local: local}
}
