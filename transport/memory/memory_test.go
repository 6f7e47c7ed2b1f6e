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

package memory

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

func TestStreamConnectRefusedWithoutListener(t *testing.T) {
	net := New()
	q, err := net.NewQueue(catnap.SOCK_STREAM)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}

	s := sched.New(nil)
	tok, err := s.InsertCoroutine("connect", 0, func(ctx context.Context, y sched.Yielder) (any, error) {
		remote := catnap.SockAddr{Addr: netip.MustParseAddr("10.0.0.9"), Port: 1}
		return nil, q.ConnectAsync(ctx, remote, y)
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}
	_, _, opErr, waitErr := s.Wait(tok, 5*time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if !catnap.IsFail(opErr, catnap.ECONNREFUSED) {
		t.Fatalf("ConnectAsync err = %v, want ECONNREFUSED", opErr)
	}
}

func TestStreamBindAssignsEphemeralPort(t *testing.T) {
	net := New()
	q, err := net.NewQueue(catnap.SOCK_STREAM)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	sq := q.(*streamQueue)

	if err := sq.Bind(catnap.SockAddr{Addr: netip.MustParseAddr("10.0.0.1")}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if sq.local.Port == 0 {
		t.Errorf("Bind left port unset, want an allocated ephemeral port")
	}
}

func TestDatagramSendToUnknownAddressRefused(t *testing.T) {
	net := New()
	q, err := net.NewQueue(catnap.SOCK_DGRAM)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}

	s := sched.New(nil)
	tok, err := s.InsertCoroutine("sendto", 0, func(ctx context.Context, y sched.Yielder) (any, error) {
		dest := catnap.SockAddr{Addr: netip.MustParseAddr("10.0.0.42"), Port: 53}
		return nil, q.SendAsync(ctx, catbuf.Wrap([]byte("x")), &dest, y)
	})
	if err != nil {
		t.Fatalf("InsertCoroutine: %v", err)
	}
	_, _, opErr, waitErr := s.Wait(tok, 5*time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if !catnap.IsFail(opErr, catnap.ECONNREFUSED) {
		t.Fatalf("SendAsync err = %v, want ECONNREFUSED", opErr)
	}
}
