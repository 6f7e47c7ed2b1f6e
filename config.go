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
	"net/netip"
	"time"
)

// Config holds the options a LibOS is constructed with.
type Config struct {
	// LocalAddr is the IPv4 address this process owns. LibOS does not read
	// it: binds are not checked against it, and no demux is fed from it.
	LocalAddr netip.Addr

	// MaxBacklog caps the backlog argument accepted by Listen.
	MaxBacklog int

	// MaxPopSize caps the size argument accepted by Pop, and is the size
	// used when the caller passes 0 (meaning "implementation default").
	MaxPopSize int

	// DefaultWaitPoll is not read by LibOS; WaitAny polls outstanding
	// tokens at the scheduler's fixed one-millisecond interval.
	DefaultWaitPoll time.Duration
}

// DefaultConfig returns reasonable defaults for use with an in-memory
// transport. LocalAddr is left as the unspecified address 0.0.0.0.
func DefaultConfig() *Config {
	return &Config{
		LocalAddr:       netip.IPv4Unspecified(),
		MaxBacklog:      128,
		MaxPopSize:      64 * 1024,
		DefaultWaitPoll: time.Millisecond,
	}
}
