// Package server implements the server side of a single client session:
// reading control messages, running the DATA handshake, and servicing the
// data-bearing commands against a private, per-session working directory.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	logs "github.com/danmuck/smplog"

	"github.com/danmuck/mftp/internal/command"
	"github.com/danmuck/mftp/internal/config"
	"github.com/danmuck/mftp/internal/lineio"
	"github.com/danmuck/mftp/internal/sink"
	"github.com/danmuck/mftp/internal/wire"
)

// Session is one accepted client's server-side state. It is never shared
// across goroutines; acceptor.Serve hands each connection to exactly one
// Session.
type Session struct {
	conn     net.Conn
	cfg      config.Config
	cwd      string
	dataConn net.Conn
}

// New builds a Session rooted at the process's starting working directory.
// cwd is a per-session string from here on; it is never applied to the OS
// process (see the package doc and SPEC_FULL.md §9).
func New(conn net.Conn, cfg config.Config) *Session {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Session{conn: conn, cfg: cfg, cwd: wd}
}

// Handle runs the session loop until the control connection closes or the
// client sends EXIT. It does not close conn; the caller (acceptor.Serve)
// owns that.
func (s *Session) Handle() {
	for {
		code, arg, err := wire.ReadMessage(s.conn, s.cfg.MaxLine)
		if err != nil {
			if errors.Is(err, wire.ErrEmptyResponse) {
				return
			}
			logs.Warnf("control read failed: %v", err)
			return
		}

		kind, ok := command.FromWireCode(code)
		if !ok {
			wire.WriteError(s.conn, fmt.Sprintf("unrecognized command code %q", code))
			continue
		}

		switch kind {
		case command.Exit:
			wire.WriteAck(s.conn)
			s.closeData()
			return
		case command.Data:
			s.handleData()
		case command.RCD:
			s.handleRCD(arg)
		default:
			if !command.NeedsData(kind) {
				wire.WriteError(s.conn, fmt.Sprintf("protocol violation: unexpected command %q", code))
				continue
			}
			s.handleDataCommand(kind, arg)
		}
	}
}

// handleData services the DATA handshake: bind an ephemeral listener,
// publish its port, then accept exactly one peer before closing the
// listener. The port is written before accept() is called, matching
// SPEC_FULL.md §4.3's resolved open question.
func (s *Session) handleData() {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("cannot open data listener: %v", err))
		return
	}

	port := ln.Addr().(*net.TCPAddr).Port
	if err := wire.WriteAckPort(s.conn, port); err != nil {
		ln.Close()
		return
	}

	peer, err := ln.Accept()
	ln.Close()
	if err != nil {
		logs.Warnf("data accept failed: %v", err)
		return
	}

	s.closeData()
	s.dataConn = peer
}

func (s *Session) handleRCD(arg string) {
	target := s.resolve(arg)
	info, err := os.Stat(target)
	if err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("cannot chdir to %q: %v", arg, err))
		return
	}
	if !info.IsDir() {
		wire.WriteError(s.conn, fmt.Sprintf("%q is not a directory", arg))
		return
	}
	s.cwd = target
	wire.WriteAck(s.conn)
}

// handleDataCommand services RLS, GET, SHOW, and PUT. It always closes and
// clears the data socket when done, per SPEC_FULL.md §4.5 step 5.
func (s *Session) handleDataCommand(kind command.Kind, arg string) {
	defer s.closeData()

	if s.dataConn == nil {
		wire.WriteError(s.conn, "Data connection not established")
		return
	}

	switch kind {
	case command.RLS:
		s.handleRLS()
	case command.Get, command.Show:
		s.handleSend(arg)
	case command.Put:
		s.handlePut(arg)
	}
}

func (s *Session) handleRLS() {
	if err := sink.RunToSinkDir(s.cfg.ListCommand, s.cwd, s.dataConn); err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("listing failed: %v", err))
		return
	}
	wire.WriteAck(s.conn)
}

// handleSend services GET and SHOW: both stream a server-side file to the
// data socket; the only difference (writing to a file vs. a pager) lives
// entirely on the client.
func (s *Session) handleSend(arg string) {
	path := s.resolve(arg)

	info, err := os.Stat(path)
	if err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("cannot open %q: %v", arg, err))
		return
	}
	if !info.Mode().IsRegular() {
		wire.WriteError(s.conn, fmt.Sprintf("%q is not a regular file", arg))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("cannot open %q: %v", arg, err))
		return
	}
	defer f.Close()

	if _, err := lineio.Stream(s.dataConn, f, s.cfg.BufferSize); err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("transfer failed: %v", err))
		return
	}
	wire.WriteAck(s.conn)
}

// handlePut is the one asymmetric data-bearing command: it acks after
// opening the destination but before the payload transfer, so the client
// knows whether to send bytes at all.
func (s *Session) handlePut(arg string) {
	name := filepath.Base(arg)
	path := filepath.Join(s.cwd, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		wire.WriteError(s.conn, fmt.Sprintf("cannot create %q: %v", name, err))
		return
	}
	defer f.Close()

	if err := wire.WriteAck(s.conn); err != nil {
		return
	}

	if _, err := lineio.Stream(f, s.dataConn, s.cfg.BufferSize); err != nil {
		logs.Warnf("put %q: %v", name, err)
	}
}

func (s *Session) resolve(arg string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	return filepath.Join(s.cwd, arg)
}

func (s *Session) closeData() {
	if s.dataConn != nil {
		s.dataConn.Close()
		s.dataConn = nil
	}
}
