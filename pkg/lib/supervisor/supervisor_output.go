package supervisor

import (
	"context"
	"strings"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
)

// OutputResult holds the lines drained by one ReadOutput call.
type OutputResult struct {
	ID     string
	Lines  []string
	Exited bool
}

// ReadOutput drains output produced since the previous call while the
// tunnel keeps running. It returns once output stays quiet for one poll
// interval, the process has exited and everything is read, Stop terminates
// the process, the drain window elapses or ctx is done.
func (s *Supervisor) ReadOutput(ctx context.Context, caller lib.Identity) (*OutputResult, error) {
	if err := s.authorize(caller, "read_output"); err != nil {
		return nil, err
	}

	h := s.current()
	if h == nil {
		return nil, lib.ErrNotRunning
	}

	data := h.drain(ctx, s.opts.DrainWindow, s.opts.PollInterval)

	return &OutputResult{
		ID:     h.id,
		Lines:  splitLines(data),
		Exited: h.hasExited(),
	}, nil
}

func (h *processHandle) drain(ctx context.Context, window, poll time.Duration) []byte {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	quiet := time.NewTimer(poll)
	defer quiet.Stop()

	notify := h.cursor.Notify()
	var buf []byte
	for {
		if chunk := h.cursor.ReadAvailable(); len(chunk) > 0 {
			buf = append(buf, chunk...)
			quiet.Reset(poll)
		}

		select {
		case _, ok := <-notify:
			if !ok {
				// Storage stopped: the process exited or the handle was discarded.
				return append(buf, h.cursor.ReadAvailable()...)
			}
		case <-h.terminated:
			return append(buf, h.cursor.ReadAvailable()...)
		case <-quiet.C:
			return append(buf, h.cursor.ReadAvailable()...)
		case <-deadline.C:
			return append(buf, h.cursor.ReadAvailable()...)
		case <-ctx.Done():
			return buf
		}
	}
}

// splitLines turns drained bytes into lines, dropping the trailing newline
// and carriage returns left by ssh.
func splitLines(data []byte) []string {
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
