// Package client implements the client side of a session: the interactive
// REPL loop, command dispatch, and the client half of each protocol
// sequence in SPEC_FULL.md §4.3.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logs "github.com/danmuck/smplog"

	"github.com/danmuck/mftp/internal/command"
	"github.com/danmuck/mftp/internal/config"
	"github.com/danmuck/mftp/internal/lineio"
	"github.com/danmuck/mftp/internal/sink"
	"github.com/danmuck/mftp/internal/wire"
)

const prompt = "mftp$ "

// localError marks a failure on the client's side rather than the wire: a
// local precheck, a local filesystem error, or a pager that cannot start. It is never fatal to the
// session.
type localError struct{ msg string }

func (e *localError) Error() string { return e.msg }

func newLocalError(format string, a ...any) error {
	return &localError{fmt.Sprintf(format, a...)}
}

// isFatal reports whether err should end the whole session rather than
// just the current command. Server-reported errors and local errors are
// recoverable; anything else observed on the wire is a transport failure.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *wire.ServerError
	var le *localError
	return !errors.As(err, &se) && !errors.As(err, &le)
}

// Session is one client's REPL state: the control connection, the host it
// dials data connections against, and the input/output streams.
type Session struct {
	conn net.Conn
	host string
	cfg  config.Config
	out  io.Writer
	in   *bufio.Reader
}

// Dial connects to host on cfg.ControlPort and returns a ready Session.
func Dial(host string, cfg config.Config) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.ControlPort))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connecting to %s: %w", addr, err)
	}
	return &Session{
		conn: conn,
		host: host,
		cfg:  cfg,
		out:  os.Stdout,
		in:   bufio.NewReader(os.Stdin),
	}, nil
}

// Run drives the REPL until the user exits or the session hits a fatal
// transport failure. On a fatal failure it closes the control connection
// and exits the process with status 1.
func (s *Session) Run() {
	defer s.conn.Close()

	for {
		fmt.Fprint(s.out, prompt)

		line, err := s.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				logs.Debugf("stdin closed, ending session")
				return
			}
			logs.Warnf("reading stdin: %v", err)
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		kind, arg, perr := command.Parse(line)
		if perr != nil {
			fmt.Fprintf(s.out, "Unrecognized command: %v\n", perr)
			continue
		}

		s.announce(kind, arg)
		err = s.dispatch(kind, arg)
		s.report(err)

		if kind == command.Exit && err == nil {
			return
		}
		if isFatal(err) {
			logs.Warnf("transport failure, ending session: %v", err)
			s.conn.Close()
			os.Exit(1)
		}
	}
}

func (s *Session) announce(kind command.Kind, arg string) {
	if arg != "" {
		fmt.Fprintf(s.out, "Running %q with argument %s\n", command.Name(kind), arg)
	} else {
		fmt.Fprintf(s.out, "Running %q\n", command.Name(kind))
	}
}

func (s *Session) report(err error) {
	if err != nil {
		fmt.Fprintln(s.out, err)
		fmt.Fprintln(s.out, "Command finished unsuccessfully (status = 1)")
		return
	}
	fmt.Fprintln(s.out, "Command finished successfully (status = 0)")
}

func (s *Session) dispatch(kind command.Kind, arg string) error {
	switch kind {
	case command.CD:
		if err := os.Chdir(arg); err != nil {
			return newLocalError("cannot chdir to %q: %v", arg, err)
		}
		return nil
	case command.LS:
		return s.doLS()
	case command.RCD:
		return s.doRCD(arg)
	case command.Exit:
		return s.doExit()
	case command.RLS:
		return s.doRLS()
	case command.Get:
		return s.doGet(arg)
	case command.Show:
		return s.doShow(arg)
	case command.Put:
		return s.doPut(arg)
	default:
		return newLocalError("command %q is not implemented", command.Name(kind))
	}
}

func (s *Session) doLS() error {
	pager, wait, err := sink.StartFromSource(s.cfg.PagerCommand)
	if err != nil {
		return newLocalError("cannot start pager: %v", err)
	}
	if err := sink.RunToSinkDir(s.cfg.ListCommand, "", pager); err != nil {
		pager.Close()
		wait()
		return newLocalError("listing failed: %v", err)
	}
	pager.Close()
	if err := wait(); err != nil {
		logs.Debugf("pager exited: %v", err)
	}
	return nil
}

func (s *Session) doRCD(arg string) error {
	if err := wire.WriteMessage(s.conn, 'C', arg); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(s.conn, s.cfg.MaxLine)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return wire.AsServerError(resp)
	}
	return nil
}

func (s *Session) doExit() error {
	if err := wire.WriteMessage(s.conn, 'Q', ""); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(s.conn, s.cfg.MaxLine)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return wire.AsServerError(resp)
	}
	return nil
}

// openData performs the DATA handshake: send D, read the port ack, dial
// the server back on that port.
func (s *Session) openData() (net.Conn, error) {
	if err := wire.WriteMessage(s.conn, 'D', ""); err != nil {
		return nil, err
	}
	resp, err := wire.ReadResponse(s.conn, s.cfg.MaxLine)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, wire.AsServerError(resp)
	}
	port, err := resp.Port()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	data, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dialing data socket %s: %w", addr, err)
	}
	return data, nil
}

func (s *Session) doRLS() error {
	data, err := s.openData()
	if err != nil {
		return err
	}
	defer data.Close()

	if err := wire.WriteMessage(s.conn, 'L', ""); err != nil {
		return err
	}

	pager, wait, err := sink.StartFromSource(s.cfg.PagerCommand)
	if err != nil {
		data.Close()
		if ackErr := s.readTerminalAck(); isFatal(ackErr) {
			return ackErr
		}
		return newLocalError("cannot start pager: %v", err)
	}
	_, streamErr := lineio.Stream(pager, data, s.cfg.BufferSize)
	pager.Close()
	if waitErr := wait(); waitErr != nil {
		logs.Debugf("pager exited: %v", waitErr)
	}
	if streamErr != nil {
		return streamErr
	}

	return s.readTerminalAck()
}

func (s *Session) doGet(arg string) error {
	data, err := s.openData()
	if err != nil {
		return err
	}
	defer data.Close()

	if err := wire.WriteMessage(s.conn, 'G', arg); err != nil {
		return err
	}

	name := filepath.Base(arg)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		data.Close()
		if ackErr := s.readTerminalAck(); isFatal(ackErr) {
			return ackErr
		}
		return newLocalError("cannot create %q: %v", name, err)
	}
	defer f.Close()

	if _, err := lineio.Stream(f, data, s.cfg.BufferSize); err != nil {
		return err
	}

	return s.readTerminalAck()
}

func (s *Session) doShow(arg string) error {
	data, err := s.openData()
	if err != nil {
		return err
	}
	defer data.Close()

	if err := wire.WriteMessage(s.conn, 'S', arg); err != nil {
		return err
	}

	pager, wait, err := sink.StartFromSource(s.cfg.PagerCommand)
	if err != nil {
		data.Close()
		if ackErr := s.readTerminalAck(); isFatal(ackErr) {
			return ackErr
		}
		return newLocalError("cannot start pager: %v", err)
	}
	_, streamErr := lineio.Stream(pager, data, s.cfg.BufferSize)
	pager.Close()
	if waitErr := wait(); waitErr != nil {
		logs.Debugf("pager exited: %v", waitErr)
	}
	if streamErr != nil {
		return streamErr
	}

	return s.readTerminalAck()
}

// doPut prechecks the local file before touching the wire: an unreadable
// or non-regular source is a local error, not a control or data exchange.
func (s *Session) doPut(arg string) error {
	info, err := os.Stat(arg)
	if err != nil {
		return newLocalError("cannot read %q: %v", arg, err)
	}
	if !info.Mode().IsRegular() {
		return newLocalError("%q is not a regular file", arg)
	}
	f, err := os.Open(arg)
	if err != nil {
		return newLocalError("cannot read %q: %v", arg, err)
	}
	defer f.Close()

	data, err := s.openData()
	if err != nil {
		return err
	}
	defer data.Close()

	if err := wire.WriteMessage(s.conn, 'P', arg); err != nil {
		return err
	}
	resp, err := wire.ReadResponse(s.conn, s.cfg.MaxLine)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return wire.AsServerError(resp)
	}

	if _, err := lineio.Stream(data, f, s.cfg.BufferSize); err != nil {
		return err
	}
	return nil
}

func (s *Session) readTerminalAck() error {
	resp, err := wire.ReadResponse(s.conn, s.cfg.MaxLine)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return wire.AsServerError(resp)
	}
	return nil
}
