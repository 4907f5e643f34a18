// Command mftpgen writes a random-content fixture file of a given size, for
// exercising GET/PUT/SHOW against files too large to hand-author.
//
// Usage:
//
//	mftpgen <size> [filename]
//
// Size accepts suffixes: B, KB, MB, GB (e.g. "256MB", "1GB", "65536"). If no
// filename is given, one is derived from the size under local/fixtures/. A
// matching file already at the requested size is left in place.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logs "github.com/danmuck/smplog"
)

const defaultFixtureDir = "local/fixtures"

const chunkSize = 4 * 1024 * 1024

func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * multiplier, nil
}

func sizeLabel(size int64) string {
	switch {
	case size > 0 && size%(1<<30) == 0:
		return fmt.Sprintf("%dGB", size>>30)
	case size > 0 && size%(1<<20) == 0:
		return fmt.Sprintf("%dMB", size>>20)
	case size > 0 && size%(1<<10) == 0:
		return fmt.Sprintf("%dKB", size>>10)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, "Usage: mftpgen <size> [filename]")
	fmt.Fprintln(w, "  size: number with optional suffix (B, KB, MB, GB)")
	fmt.Fprintln(w, "  Examples: 1MB, 256MB, 65536")
	fmt.Fprintf(w, "  Default output dir when filename omitted: %s/\n", defaultFixtureDir)
}

func generate(filename string, size int64) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if info, err := os.Stat(filename); err == nil && info.Size() == size {
		logs.Infof("reusing existing fixture %s (%d bytes)", filename, size)
		return nil
	}

	logs.Infof("generating %s (%d bytes)", filename, size)

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	remaining := size
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			return fmt.Errorf("generating random data: %w", err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return fmt.Errorf("writing %s: %w", filename, err)
		}
		remaining -= n
	}

	return nil
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		if len(os.Args) < 2 {
			usage(os.Stderr)
			os.Exit(1)
		}
		usage(os.Stdout)
		os.Exit(0)
	}

	size, err := parseSize(os.Args[1])
	if err != nil {
		logs.Errorf(err, "invalid size")
		os.Exit(1)
	}

	filename := ""
	if len(os.Args) >= 3 {
		filename = os.Args[2]
	} else {
		filename = filepath.Join(defaultFixtureDir, fmt.Sprintf("fixture_%s.dat", sizeLabel(size)))
	}

	if err := generate(filename, size); err != nil {
		logs.Errorf(err, "generating fixture")
		os.Exit(1)
	}

	logs.Infof("wrote %s (%d bytes)", filename, size)
}
