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

package posix

import (
	"net/netip"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/catnapio/catnap"
)

func TestSockaddrRoundTrip(t *testing.T) {
	addr := catnap.SockAddr{Addr: netip.MustParseAddr("192.168.1.5"), Port: 8080}

	sa := sockaddrFor(addr)
	back, err := sockAddrFrom(sa)
	if err != nil {
		t.Fatalf("sockAddrFrom: %v", err)
	}
	if back != addr {
		t.Errorf("round trip = %v, want %v", back, addr)
	}
}

func TestSockAddrFromRejectsNonIPv4(t *testing.T) {
	if _, err := sockAddrFrom(&unix.SockaddrInet6{}); !catnap.IsFail(err, catnap.ENOTSUP) {
		t.Errorf("sockAddrFrom(inet6) err = %v, want ENOTSUP", err)
	}
}

func TestWrapErrnoMapsKnownCodes(t *testing.T) {
	cases := map[unix.Errno]catnap.Errno{
		unix.EADDRINUSE:   catnap.EADDRINUSE,
		unix.EBADF:        catnap.EBADF,
		unix.EINVAL:       catnap.EINVAL,
		unix.EAGAIN:       catnap.EAGAIN,
		unix.ECONNRESET:   catnap.ECONNRESET,
		unix.ECONNREFUSED: catnap.ECONNREFUSED,
		unix.ETIMEDOUT:    catnap.ETIMEDOUT,
	}
	for errno, want := range cases {
		err := wrapErrno(errno, "op")
		if !catnap.IsFail(err, want) {
			t.Errorf("wrapErrno(%v) = %v, want errno %v", errno, err, want)
		}
	}
}

func TestWrapErrnoDefaultsToEIO(t *testing.T) {
	if err := wrapErrno(unix.ENOMEM, "op"); !catnap.IsFail(err, catnap.EIO) {
		t.Errorf("wrapErrno(ENOMEM) = %v, want EIO", err)
	}
}
