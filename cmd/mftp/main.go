// Command mftp is the interactive file-transfer client: it dials a server's
// control port and drives the REPL described in SPEC_FULL.md §4.4.
package main

import (
	"fmt"
	"os"
	"strings"

	logs "github.com/danmuck/smplog"

	"github.com/danmuck/mftp/cmd/internal/logcfg"
	"github.com/danmuck/mftp/internal/config"
	"github.com/danmuck/mftp/internal/session/client"
)

func usage(w *os.File) {
	fmt.Fprintln(w, "Usage: mftp [-d] HOSTNAME")
	fmt.Fprintln(w, "  -d  enable debug logging")
	fmt.Fprintln(w, "  -h  show this help and exit")
}

func main() {
	var debug bool
	var host string

	for _, arg := range os.Args[1:] {
		switch {
		case arg == "-h" || arg == "--help":
			usage(os.Stdout)
			os.Exit(0)
		case arg == "-d":
			debug = true
		case strings.HasPrefix(arg, "-"):
			usage(os.Stderr)
			os.Exit(1)
		case host != "":
			usage(os.Stderr)
			os.Exit(1)
		default:
			host = arg
		}
	}

	if host == "" {
		usage(os.Stderr)
		os.Exit(1)
	}

	logs.Configure(logcfg.WithDebug(logcfg.Load(), debug))

	cfg := config.Load()
	logs.Infof("connecting to %s:%d", host, cfg.ControlPort)

	sess, err := client.Dial(host, cfg)
	if err != nil {
		logs.Errorf(err, "failed to connect")
		os.Exit(1)
	}

	sess.Run()
}
