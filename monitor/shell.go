package monitor

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// endMarker terminates one batch of shell output.
const endMarker = "END_OF_BATCH"

// ProbeBatch is the privileged command batch written to the shell once per
// tick: uptime, per-core CPU ticks, battery state, network counters, and
// display state, each section delimited by echo markers.
const ProbeBatch = "echo UPTIME $(cat /proc/uptime); " +
	"cat /proc/stat; " +
	"dumpsys battery | grep -E 'level|status|temp'; " +
	"echo NET_DATA; cat /proc/net/dev; echo NET_END; " +
	"echo DISPLAY_DATA; " +
	"dumpsys display | grep -oE 'mBrightness=[0-9.]+|mActiveRenderFrameRate=[0-9.]+'; " +
	"echo DISPLAY_END; " +
	"echo " + endMarker + "\n"

// BatchRunner runs one probe batch and returns its output lines, end marker
// excluded. The monitor treats a nil runner or a failed run as "privileged
// fields unavailable this tick" and retains previous values.
type BatchRunner interface {
	Run() ([]string, error)
	Close() error
}

// Session is a long-lived privileged shell (rish on Android, any sh-like
// binary elsewhere). One batch is written per tick and the output is read
// until the end marker, so the shell is spawned exactly once.
type Session struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Scanner
	batch string
}

// StartSession spawns the shell and wires its pipes.
func StartSession(shell, batch string) (*Session, error) {
	cmd := exec.Command(shell)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("shell stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("shell stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", shell, err)
	}
	return &Session{
		cmd:   cmd,
		stdin: stdin,
		out:   bufio.NewScanner(stdout),
		batch: batch,
	}, nil
}

// Run writes the batch and collects output lines until the end marker.
func (s *Session) Run() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.stdin, s.batch); err != nil {
		return nil, fmt.Errorf("write batch: %w", err)
	}

	var lines []string
	for s.out.Scan() {
		line := s.out.Text()
		if line == endMarker {
			return lines, nil
		}
		lines = append(lines, line)
	}
	if err := s.out.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return nil, fmt.Errorf("shell closed before end marker")
}

// Close shuts the shell down and reaps the child so no zombie is left.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdin.Close()
	return s.cmd.Wait()
}
