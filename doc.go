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

// Package catnap implements a small user-space networking library-OS: a
// POSIX-like asynchronous socket API linked directly into the calling
// process, backed by a pluggable Transport (a host-kernel socket wrapper or
// a kernel-bypass IPv4 stack).
//
// There is no daemon and no persisted state. Callers open queues with
// Socket, drive them through Bind/Listen/Accept/Connect/Push/Pushto/Pop/
// AsyncClose, and harvest the asynchronous ones with Wait/WaitAny.
package catnap
