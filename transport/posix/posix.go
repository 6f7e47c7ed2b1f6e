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

// Package posix is catnap's host-kernel Transport: one non-blocking POSIX
// socket per queue, with readiness waited on via unix.Poll from the
// goroutine backing each async call rather than a blocking syscall held
// open on the coroutine's behalf.
package posix

import (
	"context"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

// Posix is a catnap.Transport backed by the host kernel's socket(2)
// family of syscalls.
type Posix struct{}

// New constructs a Posix transport. There is no shared state between
// queues beyond what the kernel itself tracks.
func New() *Posix { return &Posix{} }

// NewQueue implements catnap.Transport.
func (p *Posix) NewQueue(sockType catnap.SockType) (catnap.TransportQueue, error) {
	var typ int
	switch sockType {
	case catnap.SOCK_STREAM:
		typ = unix.SOCK_STREAM
	case catnap.SOCK_DGRAM:
		typ = unix.SOCK_DGRAM
	default:
		return nil, catnap.NewFail(catnap.ENOTSUP, "posix transport: unsupported socket type %d", sockType)
	}

	fd, err := unix.Socket(unix.AF_INET, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, wrapErrno(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, wrapErrno(err, "setsockopt(SO_REUSEADDR)")
	}

	return &socketQueue{fd: fd, sockType: sockType}, nil
}

func sockaddrFor(addr catnap.SockAddr) unix.Sockaddr {
	a4 := addr.Addr.As4()
	return &unix.SockaddrInet4{Port: int(addr.Port), Addr: a4}
}

func sockAddrFrom(sa unix.Sockaddr) (catnap.SockAddr, error) {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return catnap.SockAddr{}, catnap.NewFail(catnap.ENOTSUP, "posix transport: non-IPv4 peer address")
	}
	return catnap.SockAddr{Addr: netip.AddrFrom4(in4.Addr), Port: uint16(in4.Port)}, nil
}

// wrapErrno maps a syscall-level error to the nearest Fail category.
func wrapErrno(err error, op string) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return catnap.NewFail(catnap.EIO, "%s: %v", op, err)
	}
	switch errno {
	case unix.EADDRINUSE:
		return catnap.NewFail(catnap.EADDRINUSE, "%s: %v", op, err)
	case unix.EBADF:
		return catnap.NewFail(catnap.EBADF, "%s: %v", op, err)
	case unix.EINVAL:
		return catnap.NewFail(catnap.EINVAL, "%s: %v", op, err)
	case unix.EAGAIN:
		return catnap.NewFail(catnap.EAGAIN, "%s: %v", op, err)
	case unix.ECONNRESET:
		return catnap.NewFail(catnap.ECONNRESET, "%s: %v", op, err)
	case unix.ECONNREFUSED:
		return catnap.NewFail(catnap.ECONNREFUSED, "%s: %v", op, err)
	case unix.ETIMEDOUT:
		return catnap.NewFail(catnap.ETIMEDOUT, "%s: %v", op, err)
	default:
		return catnap.NewFail(catnap.EIO, "%s: %v", op, err)
	}
}

// doAsync runs work on its own goroutine, suspending the coroutine on y
// until it finishes or ctx ends. Mirrors transport/memory's helper of the
// same name; kept separate since the two transports share no code.
func doAsync(ctx context.Context, y sched.Yielder, work func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- work()
		y.Wake()
	}()
	if err := y.Yield(ctx); err != nil {
		return catnap.NewFail(catnap.ECANCELED, "%v", err)
	}
	return <-done
}

// pollFD blocks (on its calling goroutine, not the coroutine's) until fd
// is ready for the given event or ctx ends, re-polling in short slices so
// context cancellation is noticed promptly.
func pollFD(ctx context.Context, fd int, events int16) error {
	const sliceMillis = 50
	pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := unix.Poll(pfd, sliceMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return wrapErrno(err, "poll")
		}
		if n > 0 {
			if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				return catnap.NewFail(catnap.ECONNRESET, "poll: fd reported error/hangup")
			}
			return nil
		}
	}
}

var _ catnap.TransportQueue = (*socketQueue)(nil)
