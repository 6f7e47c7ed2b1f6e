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

// Package catbuf provides DemiBuffer-equivalent byte regions: an owned,
// ref-counted, length-tagged byte slice supporting head/tail trim and
// cheap clone, sized for Ethernet-MTU IPv4 datagrams rather than the
// block-I/O buffer sizes a pooled byte-slice allocator usually tunes for.
package catbuf

import (
	"sync"
	"sync/atomic"
)

// Bucket sizes for the backing pool. An IPv4 datagram on an Ethernet link
// is capped at 65535 bytes but the overwhelming majority are MTU-sized or
// smaller, so small buckets dominate.
const (
	size2k  = 2 * 1024
	size8k  = 8 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
)

var pools = struct {
	p2k, p8k, p16k, p64k sync.Pool
}{
	p2k:  sync.Pool{New: func() any { b := make([]byte, size2k); return &b }},
	p8k:  sync.Pool{New: func() any { b := make([]byte, size8k); return &b }},
	p16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	p64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

func getBacking(size int) []byte {
	switch {
	case size <= size2k:
		return (*pools.p2k.Get().(*[]byte))[:size]
	case size <= size8k:
		return (*pools.p8k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*pools.p16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*pools.p64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

func putBacking(b []byte) {
	switch cap(b) {
	case size2k:
		pools.p2k.Put(&b)
	case size8k:
		pools.p8k.Put(&b)
	case size16k:
		pools.p16k.Put(&b)
	case size64k:
		pools.p64k.Put(&b)
		// non-standard capacities (e.g. make([]byte, size) fallback above,
		// or a caller-supplied slice) are simply not returned to the pool.
	}
}

// Buffer is an owned, contiguous byte region with shared-reference
// cloning. The zero value is not valid; use New or Wrap.
type Buffer struct {
	data   []byte
	offset int
	length int
	refs   *int32
	pooled bool
}

// New allocates a fresh, pool-backed Buffer of the given length.
func New(length int) Buffer {
	refs := int32(1)
	return Buffer{
		data:   getBacking(length),
		length: length,
		refs:   &refs,
		pooled: true,
	}
}

// Wrap adopts a caller-owned slice as a Buffer without pooling it; Release
// is then a no-op on the underlying array.
func Wrap(data []byte) Buffer {
	refs := int32(1)
	return Buffer{data: data, length: len(data), refs: &refs}
}

// Len returns the buffer's current length.
func (b Buffer) Len() int { return b.length }

// Bytes returns the buffer's current window as a slice. The caller must
// not retain it past a Release of every outstanding clone.
func (b Buffer) Bytes() []byte {
	if b.data == nil {
		return nil
	}
	return b.data[b.offset : b.offset+b.length]
}

// TrimHead drops n bytes from the front of the buffer's window.
func (b *Buffer) TrimHead(n int) {
	if n > b.length {
		n = b.length
	}
	b.offset += n
	b.length -= n
}

// TrimTail drops n bytes from the back of the buffer's window.
func (b *Buffer) TrimTail(n int) {
	if n > b.length {
		n = b.length
	}
	b.length -= n
}

// Clone returns a second owning handle to the same backing storage,
// bumping the shared reference count. Both handles must be Released
// independently.
func (b Buffer) Clone() Buffer {
	if b.refs != nil {
		atomic.AddInt32(b.refs, 1)
	}
	return b
}

// Release drops this handle's reference. Once the last clone is released,
// a pool-backed buffer's storage is returned to its size bucket.
func (b Buffer) Release() {
	if b.refs == nil {
		return
	}
	if atomic.AddInt32(b.refs, -1) > 0 {
		return
	}
	if b.pooled && b.data != nil {
		putBacking(b.data)
	}
}
