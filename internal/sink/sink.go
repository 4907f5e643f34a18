// Package sink models the side processes this system shells out to — the
// directory listing and the pager — as two small contracts: "a command
// whose stdout feeds a byte sink" and "a command whose stdin is fed from a
// byte source." Neither contract examines the side process's exit status
// when deciding success; only the plumbing's success matters.
package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// RunToSinkDir runs argv with its working directory set to dir (empty
// means inherit the caller's) and its standard output connected to out.
// It blocks until the process exits. A process that exits on its own with a
// non-zero status is not an error; failing to start, failing to copy its
// output, or being killed by a signal is.
func RunToSinkDir(argv []string, dir string, out io.Writer) error {
	if len(argv) == 0 {
		return fmt.Errorf("sink: empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			return nil
		}
		return fmt.Errorf("sink: %s: %w: %s", argv[0], err, stderr.String())
	}
	return nil
}

// StartFromSource starts argv with its standard input connected to a pipe
// this function returns, and its standard output/error passed through to
// the current process's. The caller writes payload bytes into the
// returned writer, closes it to signal EOF to the side process, then calls
// wait to reap it.
func StartFromSource(argv []string) (stdin io.WriteCloser, wait func() error, err error) {
	if len(argv) == 0 {
		return nil, nil, fmt.Errorf("sink: empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("sink: %s: %w", argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("sink: %s: %w", argv[0], err)
	}

	return pipe, cmd.Wait, nil
}
