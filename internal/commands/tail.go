package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/paulsmith/jjq/internal/checkexec"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

// TailOptions controls Tail's behavior, mirroring `jjq tail`'s flags.
type TailOptions struct {
	All    bool // dump the whole log instead of the last tailLines lines
	Follow bool // poll for new lines until sentinel or the run lock frees
}

// tailLines is the default window when --all is not given.
const tailLines = 20

// pollInterval is how often Tail checks for new log output in follow
// mode.
const pollInterval = 200 * time.Millisecond

// Tail streams the run log to w, filtering sentinel lines, per spec
// §6's `tail` contract: dump mode prints the tail (or everything with
// All), follow mode polls every 200ms and stops on the sentinel line
// or once the run lock is no longer held.
func (c *Commands) Tail(ctx context.Context, w io.Writer, opts TailOptions) error {
	path := checkexec.LogPath(c.RepoRoot)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return jjqerr.New(jjqerr.Usage, "no run log yet at %s", path)
		}
		return jjqerr.Wrap(jjqerr.Fatal, err, "opening run log")
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "reading run log")
	}
	if !opts.All && len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	sawSentinel := false
	for _, line := range lines {
		if checkexec.IsSentinel(line) {
			sawSentinel = true
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}

	if !opts.Follow || sawSentinel {
		return nil
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "seeking run log")
	}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && err == nil {
			trimmed := trimNewline(line)
			if checkexec.IsSentinel(trimmed) {
				return nil
			}
			if _, werr := io.WriteString(w, line); werr != nil {
				return werr
			}
		}
		if err == nil {
			continue
		}
		if err != io.EOF {
			return jjqerr.Wrap(jjqerr.Fatal, err, "reading run log")
		}

		held, lockErr := c.Lock.IsHeld("run")
		if lockErr == nil && !held {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func readLines(f *os.File) ([]string, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
