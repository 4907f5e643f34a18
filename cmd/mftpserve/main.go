// Command mftpserve is the file-transfer server: it listens on the control
// port and fans out each accepted connection to its own session (§4.5/§4.6).
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	logs "github.com/danmuck/smplog"

	"github.com/danmuck/mftp/cmd/internal/logcfg"
	"github.com/danmuck/mftp/internal/acceptor"
	"github.com/danmuck/mftp/internal/config"
	"github.com/danmuck/mftp/internal/session/server"
)

func usage(w *os.File) {
	fmt.Fprintln(w, "Usage: mftpserve [-d]")
	fmt.Fprintln(w, "  -d  enable debug logging")
	fmt.Fprintln(w, "  -h  show this help and exit")
}

func main() {
	var debug bool

	for _, arg := range os.Args[1:] {
		switch arg {
		case "-h", "--help":
			usage(os.Stdout)
			os.Exit(0)
		case "-d":
			debug = true
		default:
			usage(os.Stderr)
			os.Exit(1)
		}
	}

	logs.Configure(logcfg.WithDebug(logcfg.Load(), debug))

	cfg := config.Load()

	addr := net.JoinHostPort("", strconv.Itoa(cfg.ControlPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logs.Errorf(err, "failed to listen on %s", addr)
		os.Exit(1)
	}
	defer ln.Close()

	logs.Infof("mftpserve listening on %s", ln.Addr())

	if err := acceptor.Serve(ln, cfg.Backlog, func(conn net.Conn) {
		sess := server.New(conn, cfg)
		sess.Handle()
	}); err != nil {
		logs.Errorf(err, "accept loop exited")
		os.Exit(1)
	}
}
