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

// Package session drives one accepted connection through the state machine
// of C5: ACCEPTED -> REGISTERED -> (ACTIVE)* -> CLOSED.
package session

import (
	"bufio"
	"net"

	"github.com/rs/xid"

	"github.com/loranet/lorasim-server/dispatcher"
	"github.com/loranet/lorasim-server/logger"
	"github.com/loranet/lorasim-server/registry"
	"github.com/loranet/lorasim-server/wire"
)

// state names the session's place in the C5 state machine.
type state int

const (
	accepted state = iota
	registered
)

// Session owns one connection's lifecycle against a shared Registry and
// Dispatcher.
type Session struct {
	id    xid.ID
	conn  net.Conn
	reg   *registry.Registry
	disp  *dispatcher.Dispatcher
	state state
	node  wire.NodeID
}

// New creates a Session for an accepted connection. Run must be called to
// drive it.
func New(conn net.Conn, reg *registry.Registry, disp *dispatcher.Dispatcher) *Session {
	return &Session{
		id:    xid.New(),
		conn:  conn,
		reg:   reg,
		disp:  disp,
		state: accepted,
	}
}

// Run reads newline-delimited JSON frames from the connection until EOF or
// a socket error, dispatching register/tx frames. It blocks until
// the connection closes and always leaves the registry and transport
// cleaned up before returning.
func (s *Session) Run() {
	defer s.close()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		frame, err := wire.Decode(line)
		if err != nil {
			logger.Debugf("session %s: skipping malformed line: %v", s.id, err)
			continue
		}

		switch f := frame.(type) {
		case *wire.RegisterFrame:
			s.handleRegister(f)
		case *wire.TxFrame:
			s.handleTx(f)
		}
	}
}

// handleRegister implements the ACCEPTED/REGISTERED transition: any
// register, whether this is the session's first or a re-registration,
// atomically inserts/replaces the node record.
func (s *Session) handleRegister(f *wire.RegisterFrame) {
	stale := s.reg.Register(f.NodeID, s.conn, f.Location, f.Frequency)
	if stale != nil {
		_ = stale.Close()
	}
	s.node = f.NodeID
	s.state = registered
	logger.Infof("session %s: node %d registered at %v on %.0f MHz", s.id, f.NodeID, f.Location, f.Frequency)
}

// handleTx implements the ACTIVE state: before registration, tx
// frames are ignored just like any other non-register frame.
func (s *Session) handleTx(f *wire.TxFrame) {
	if s.state != registered {
		logger.Debugf("session %s: tx before registration, ignoring", s.id)
		return
	}
	s.disp.Dispatch(f)
}

// close implements the CLOSED state: remove the node record (if
// this session still owns it) and close the transport.
func (s *Session) close() {
	if s.state == registered {
		s.reg.Unregister(s.node, s.conn)
	}
	_ = s.conn.Close()
	logger.Debugf("session %s: closed", s.id)
}
