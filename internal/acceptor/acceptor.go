// Package acceptor runs the server's connection fan-out: accept a client,
// hand it to its own unit of concurrency, go back to accepting.
//
// The reference system is process-per-connection, which gives each session
// a private process-level working directory for free. This port uses
// goroutine-per-connection instead (the equivalent the spec allows), so the
// session handler is responsible for carrying its own cwd rather than
// relying on process isolation — see the server session package.
package acceptor

import (
	"net"
	"sync"

	logs "github.com/danmuck/smplog"
)

// Handler services one accepted connection until the session ends. It owns
// conn exclusively while it runs; Serve closes conn after it returns.
type Handler func(conn net.Conn)

// Serve accepts connections from ln until it returns a non-timeout error,
// dispatching each to its own goroutine running handle. backlog is
// informational only: Go's net package does not expose a way to set the
// listen backlog independently of net.Listen, so it is logged, not applied.
func Serve(ln net.Listener, backlog int, handle Handler) error {
	logs.Infof("accepting connections on %s (backlog=%d)", ln.Addr(), backlog)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		logs.Infof("session accepted from %s", conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			handle(conn)
			logs.Infof("session ended: %s", conn.RemoteAddr())
		}()
	}
}
