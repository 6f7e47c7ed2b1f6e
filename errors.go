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
	"syscall"
)

// Errno categorizes a Fail the way a POSIX errno would. The zero value is
// not a valid category.
type Errno int

const (
	_ Errno = iota
	ENOTSUP
	EADDRINUSE
	EBADF
	EINVAL
	EAGAIN
	ECONNRESET
	ECONNREFUSED
	ETIMEDOUT
	ECANCELED
	EIO
)

var errnoNames = map[Errno]string{
	ENOTSUP:      "ENOTSUP",
	EADDRINUSE:   "EADDRINUSE",
	EBADF:        "EBADF",
	EINVAL:       "EINVAL",
	EAGAIN:       "EAGAIN",
	ECONNRESET:   "ECONNRESET",
	ECONNREFUSED: "ECONNREFUSED",
	ETIMEDOUT:    "ETIMEDOUT",
	ECANCELED:    "ECANCELED",
	EIO:          "EIO",
}

func (e Errno) String() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Errno(%d)", int(e))
}

// Syscall returns the syscall.Errno most closely corresponding to e, for
// callers that need to interoperate with code expecting kernel errno
// values.
func (e Errno) Syscall() syscall.Errno {
	switch e {
	case ENOTSUP:
		return syscall.ENOTSUP
	case EADDRINUSE:
		return syscall.EADDRINUSE
	case EBADF:
		return syscall.EBADF
	case EINVAL:
		return syscall.EINVAL
	case EAGAIN:
		return syscall.EAGAIN
	case ECONNRESET:
		return syscall.ECONNRESET
	case ECONNREFUSED:
		return syscall.ECONNREFUSED
	case ETIMEDOUT:
		return syscall.ETIMEDOUT
	case ECANCELED:
		return syscall.ECANCELED
	default:
		return syscall.EIO
	}
}

// Fail is the error type returned throughout catnap: an errno category
// paired with a human-readable cause.
type Fail struct {
	Errno Errno
	Cause string
}

func (f *Fail) Error() string {
	return fmt.Sprintf("%s: %s", f.Errno, f.Cause)
}

// NewFail builds a *Fail, formatting cause like fmt.Sprintf.
func NewFail(errno Errno, format string, args ...any) *Fail {
	return &Fail{Errno: errno, Cause: fmt.Sprintf(format, args...)}
}

// IsFail reports whether err is a *Fail with the given errno category.
func IsFail(err error, errno Errno) bool {
	f, ok := err.(*Fail)
	return ok && f.Errno == errno
}
