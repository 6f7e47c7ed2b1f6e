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
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/internal/sched"
)

// socketQueue is one non-blocking kernel socket.
type socketQueue struct {
	fd       int
	sockType catnap.SockType

	mu        sync.Mutex
	closeOnce sync.Once
}

func (q *socketQueue) Bind(local catnap.SockAddr) error {
	if err := unix.Bind(q.fd, sockaddrFor(local)); err != nil {
		return wrapErrno(err, "bind")
	}
	return nil
}

func (q *socketQueue) Listen(backlog int) error {
	if err := unix.Listen(q.fd, backlog); err != nil {
		return wrapErrno(err, "listen")
	}
	return nil
}

func (q *socketQueue) AcceptAsync(ctx context.Context, y sched.Yielder) (catnap.TransportQueue, catnap.SockAddr, error) {
	var newTQ catnap.TransportQueue
	var remote catnap.SockAddr
	err := doAsync(ctx, y, func() error {
		for {
			nfd, sa, acceptErr := unix.Accept4(q.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			if acceptErr == nil {
				addr, convErr := sockAddrFrom(sa)
				if convErr != nil {
					unix.Close(nfd)
					return convErr
				}
				newTQ = &socketQueue{fd: nfd, sockType: q.sockType}
				remote = addr
				return nil
			}
			if acceptErr != unix.EAGAIN && acceptErr != unix.EWOULDBLOCK {
				return wrapErrno(acceptErr, "accept4")
			}
			if err := pollFD(ctx, q.fd, unix.POLLIN); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, catnap.SockAddr{}, err
	}
	return newTQ, remote, nil
}

func (q *socketQueue) ConnectAsync(ctx context.Context, remote catnap.SockAddr, y sched.Yielder) error {
	return doAsync(ctx, y, func() error {
		err := unix.Connect(q.fd, sockaddrFor(remote))
		if err == nil {
			return nil
		}
		if err != unix.EINPROGRESS {
			return wrapErrno(err, "connect")
		}
		if err := pollFD(ctx, q.fd, unix.POLLOUT); err != nil {
			return err
		}
		soErr, gerr := unix.GetsockoptInt(q.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			return wrapErrno(gerr, "getsockopt(SO_ERROR)")
		}
		if soErr != 0 {
			return wrapErrno(unix.Errno(soErr), "connect")
		}
		return nil
	})
}

func (q *socketQueue) SendAsync(ctx context.Context, buf catbuf.Buffer, remote *catnap.SockAddr, y sched.Yielder) error {
	return doAsync(ctx, y, func() error {
		defer buf.Release()
		data := buf.Bytes()
		for len(data) > 0 {
			var n int
			var err error
			if remote != nil {
				err = unix.Sendto(q.fd, data, 0, sockaddrFor(*remote))
				n = len(data)
			} else {
				n, err = unix.Write(q.fd, data)
			}
			if err != nil {
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					if perr := pollFD(ctx, q.fd, unix.POLLOUT); perr != nil {
						return perr
					}
					continue
				}
				return wrapErrno(err, "send")
			}
			data = data[n:]
		}
		return nil
	})
}

const maxDatagramSize = 65535

func (q *socketQueue) RecvAsync(ctx context.Context, size int, y sched.Yielder) (*catnap.SockAddr, catbuf.Buffer, error) {
	if size <= 0 || size > maxDatagramSize {
		size = maxDatagramSize
	}

	var remote *catnap.SockAddr
	var out catbuf.Buffer
	err := doAsync(ctx, y, func() error {
		tmp := catbuf.New(size)
		for {
			var n int
			var err error
			var from unix.Sockaddr

			if q.sockType == catnap.SOCK_DGRAM {
				n, from, err = unix.Recvfrom(q.fd, tmp.Bytes(), 0)
			} else {
				n, err = unix.Read(q.fd, tmp.Bytes())
			}

			if err != nil {
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					if perr := pollFD(ctx, q.fd, unix.POLLIN); perr != nil {
						tmp.Release()
						return perr
					}
					continue
				}
				tmp.Release()
				return wrapErrno(err, "recv")
			}
			if n == 0 && q.sockType == catnap.SOCK_STREAM {
				tmp.Release()
				return catnap.NewFail(catnap.ECONNRESET, "peer closed connection")
			}

			tmp.TrimTail(tmp.Len() - n)
			if from != nil {
				addr, convErr := sockAddrFrom(from)
				if convErr == nil {
					remote = &addr
				}
			}
			out = tmp
			return nil
		}
	})
	if err != nil {
		return nil, catbuf.Buffer{}, err
	}
	return remote, out, nil
}

func (q *socketQueue) CloseAsync(ctx context.Context, y sched.Yielder) error {
	q.HardClose()
	return nil
}

func (q *socketQueue) HardClose() {
	q.closeOnce.Do(func() {
		unix.Close(q.fd)
	})
}
