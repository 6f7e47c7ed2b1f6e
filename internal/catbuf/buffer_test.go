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

package catbuf

import "testing"

func TestNewLen(t *testing.T) {
	b := New(128)
	defer b.Release()
	if got := b.Len(); got != 128 {
		t.Errorf("Len() = %d, want 128", got)
	}
	if got := len(b.Bytes()); got != 128 {
		t.Errorf("len(Bytes()) = %d, want 128", got)
	}
}

func TestWrap(t *testing.T) {
	data := []byte("hello")
	b := Wrap(data)
	defer b.Release()
	if got := string(b.Bytes()); got != "hello" {
		t.Errorf("Bytes() = %q, want %q", got, "hello")
	}
}

func TestTrimHeadTail(t *testing.T) {
	b := Wrap([]byte("0123456789"))
	defer b.Release()

	b.TrimHead(2)
	if got := string(b.Bytes()); got != "23456789" {
		t.Errorf("after TrimHead(2): Bytes() = %q", got)
	}

	b.TrimTail(3)
	if got := string(b.Bytes()); got != "23456" {
		t.Errorf("after TrimTail(3): Bytes() = %q", got)
	}

	// Trimming past the end clamps rather than going negative.
	b.TrimTail(1000)
	if got := b.Len(); got != 0 {
		t.Errorf("after over-trim: Len() = %d, want 0", got)
	}
}

func TestCloneSharesStorageIndependentWindow(t *testing.T) {
	b := Wrap([]byte("abcdef"))
	clone := b.Clone()

	b.TrimHead(2)
	if got := string(b.Bytes()); got != "cdef" {
		t.Errorf("original after TrimHead(2) = %q, want %q", got, "cdef")
	}
	if got := string(clone.Bytes()); got != "abcdef" {
		t.Errorf("clone window changed: got %q, want %q", got, "abcdef")
	}

	b.Release()
	clone.Release()
}

func TestReleaseOnceForSingleOwner(t *testing.T) {
	b := New(16)
	// A single owner that never cloned still must be safe to release once.
	b.Release()
}
