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

// Command catnap-echo is a TCP echo server built on the catnap libOS,
// demonstrating the socket/bind/listen/accept/push/pop/close call
// sequence against either the host kernel or the in-memory simulated
// transport.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/netip"
	"time"

	"github.com/catnapio/catnap"
	"github.com/catnapio/catnap/internal/catbuf"
	"github.com/catnapio/catnap/transport/memory"
	"github.com/catnapio/catnap/transport/posix"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7777", "address to listen on")
	sim := flag.Bool("sim", false, "use the in-memory simulated transport instead of host sockets")
	flag.Parse()

	local, err := parseSockAddr(*addr)
	if err != nil {
		log.Fatalf("catnap-echo: %v", err)
	}

	var transport catnap.Transport
	if *sim {
		transport = memory.New()
	} else {
		transport = posix.New()
	}

	libos := catnap.NewLibOS(nil, transport)
	defer libos.Shutdown()

	listenQD, err := libos.Socket(catnap.AF_INET, catnap.SOCK_STREAM)
	if err != nil {
		log.Fatalf("catnap-echo: socket: %v", err)
	}
	if err := libos.Bind(listenQD, local); err != nil {
		log.Fatalf("catnap-echo: bind: %v", err)
	}
	if err := libos.Listen(listenQD, 16); err != nil {
		log.Fatalf("catnap-echo: listen: %v", err)
	}

	log.Printf("catnap-echo: listening on %s (sim=%v)", local, *sim)

	for {
		tok, err := libos.Accept(listenQD)
		if err != nil {
			log.Fatalf("catnap-echo: accept: %v", err)
		}
		_, result, err := libos.Wait(tok, 0)
		if err != nil {
			log.Fatalf("catnap-echo: wait(accept): %v", err)
		}
		if result.Kind == catnap.ResultFailed {
			log.Printf("catnap-echo: accept failed: %v", result.Err)
			continue
		}
		go serve(libos, result.NewQD)
	}
}

func serve(libos *catnap.LibOS, qd catnap.QDesc) {
	defer func() {
		tok, err := libos.AsyncClose(qd)
		if err != nil {
			return
		}
		libos.Wait(tok, time.Second)
	}()

	for {
		tok, err := libos.Pop(qd, 0)
		if err != nil {
			log.Printf("catnap-echo: qd=%d pop: %v", qd, err)
			return
		}
		_, result, err := libos.Wait(tok, 0)
		if err != nil {
			log.Printf("catnap-echo: qd=%d wait(pop): %v", qd, err)
			return
		}
		if result.Kind == catnap.ResultFailed {
			if !catnap.IsFail(result.Err, catnap.ECONNRESET) {
				log.Printf("catnap-echo: qd=%d pop failed: %v", qd, result.Err)
			}
			return
		}
		if len(result.Buffer) == 0 {
			return
		}

		buf := catbuf.Wrap(result.Buffer)
		tok, err = libos.Push(qd, buf)
		if err != nil {
			log.Printf("catnap-echo: qd=%d push: %v", qd, err)
			return
		}
		if _, result, err := libos.Wait(tok, 0); err != nil || result.Kind == catnap.ResultFailed {
			log.Printf("catnap-echo: qd=%d push failed: err=%v result=%v", qd, err, result.Err)
			return
		}
	}
}

func parseSockAddr(s string) (catnap.SockAddr, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return catnap.SockAddr{}, fmt.Errorf("bad address %q: %w", s, err)
	}
	return catnap.SockAddr{Addr: ap.Addr(), Port: ap.Port()}, nil
}
