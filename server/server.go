// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package server implements the medium server's process lifecycle (C7):
// bind, accept loop, per-connection dispatch, and signal-driven shutdown.
package server

import (
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/loranet/lorasim-server/dispatcher"
	"github.com/loranet/lorasim-server/logger"
	"github.com/loranet/lorasim-server/progctx"
	"github.com/loranet/lorasim-server/registry"
	"github.com/loranet/lorasim-server/session"
)

// acceptTimeout bounds each accept() call so the loop can observe ctx
// cancellation promptly.
const acceptTimeout = time.Second

// Server owns the listening socket and the shared registry all sessions
// dispatch through.
type Server struct {
	ctx      *progctx.ProgCtx
	reg      *registry.Registry
	disp     *dispatcher.Dispatcher
	listener *net.TCPListener
}

// New binds addr (e.g. ":7900") with address reuse set.
func New(ctx *progctx.ProgCtx, addr string, reg *registry.Registry) (*Server, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var controlErr error
			err := c.Control(func(fd uintptr) {
				controlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return controlErr
		},
	}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, errors.Errorf("listener for %s is not a *net.TCPListener", addr)
	}

	s := &Server{
		ctx:      ctx,
		reg:      reg,
		disp:     dispatcher.New(reg),
		listener: tcpLn,
	}
	ctx.Defer(func() {
		logger.Infof("server: closing listener")
		s.shutdown()
	})
	return s, nil
}

// Addr returns the listener's bound address, useful once addr was given as
// ":0" for an ephemeral port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve runs the accept loop until ctx is cancelled. Each accepted
// connection is handled in its own task tracked by ctx's wait group, per
// connections are handled concurrently. Serve blocks until the listener
// is closed.
func (s *Server) Serve() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = s.listener.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			logger.Warnf("server: accept error: %v", err)
			continue
		}

		s.ctx.WaitAdd("session", 1)
		go func() {
			defer s.ctx.WaitDone("session")
			session.New(conn, s.reg, s.disp).Run()
		}()
	}
}

// shutdown closes every registered transport under the registry lock, then
// the listener itself, as the orderly shutdown sequence.
func (s *Server) shutdown() {
	s.reg.CloseAll()
	_ = s.listener.Close()
}
