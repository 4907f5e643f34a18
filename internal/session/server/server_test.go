package server

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/danmuck/mftp/internal/config"
	"github.com/danmuck/mftp/internal/wire"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ListCommand = []string{"ls"}
	return cfg
}

// newSessionPair starts a server Session over an in-memory pipe rooted at
// dir and returns the client-side end of the control connection.
func newSessionPair(t *testing.T, dir string) net.Conn {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	cfg := testConfig()
	s := New(serverConn, cfg)
	s.cwd = dir

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handle()
	}()
	t.Cleanup(func() {
		clientConn.Close()
		<-done
	})

	return clientConn
}

func TestHandleRCDSuccessAndFailure(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	conn := newSessionPair(t, dir)

	if err := wire.WriteMessage(conn, 'C', sub); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error: %s", resp.Payload)
	}

	if err := wire.WriteMessage(conn, 'C', "does-not-exist"); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err = wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("expected error response for nonexistent directory")
	}
}

func TestHandleUnrecognizedCommand(t *testing.T) {
	dir := t.TempDir()
	conn := newSessionPair(t, dir)

	if err := wire.WriteMessage(conn, 'Z', ""); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("expected error response for unrecognized command")
	}
}

func TestHandleDataCommandWithoutHandshakeErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	conn := newSessionPair(t, dir)

	if err := wire.WriteMessage(conn, 'G', "x.txt"); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("expected error response when no data connection is established")
	}
}

func TestHandleExitAcks(t *testing.T) {
	dir := t.TempDir()
	conn := newSessionPair(t, dir)

	if err := wire.WriteMessage(conn, 'Q', ""); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error: %s", resp.Payload)
	}
}

// dataHandshake performs the DATA handshake against a running session and
// returns the connected data socket.
func dataHandshake(t *testing.T, conn net.Conn) net.Conn {
	t.Helper()
	if err := wire.WriteMessage(conn, 'D', ""); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("handshake error: %s", resp.Payload)
	}
	port, err := resp.Port()
	if err != nil {
		t.Fatalf("Port: %v", err)
	}
	data, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial data socket: %v", err)
	}
	return data
}

func TestDataHandshakeThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	conn := newSessionPair(t, dir)
	data := dataHandshake(t, conn)
	defer data.Close()

	if err := wire.WriteMessage(conn, 'G', "x.txt"); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got := make([]byte, len(want))
	if _, err := readFull(data, got); err != nil {
		t.Fatalf("reading data socket: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error: %s", resp.Payload)
	}
}

func TestPutRejectsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "y.txt"), []byte("already here"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	conn := newSessionPair(t, dir)
	data := dataHandshake(t, conn)
	defer data.Close()

	if err := wire.WriteMessage(conn, 'P', "y.txt"); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	resp, err := wire.ReadResponse(conn, config.DefaultMaxLine)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("expected error for existing PUT destination")
	}

	contents, err := os.ReadFile(filepath.Join(dir, "y.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(contents) != "already here" {
		t.Fatalf("existing file was modified: %q", contents)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
