// Package supervisor owns the single SSH tunnel process: it starts, kills,
// reports and drains it on behalf of the configured operator.
package supervisor

import (
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/guard"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/output_storage"
)

const (
	DefaultShell        = "/bin/sh"
	DefaultDrainWindow  = time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStopTimeout  = time.Second
	DefaultCgroupRoot   = "ssh-proxy-bot"
)

// ErrCgroupsUnavailable is returned with usable process attributes when
// cgroup placement is enabled but the host has no cgroup v2 hierarchy.
var ErrCgroupsUnavailable = errors.New("cgroup v2 is not available")

// Options tunes how the tunnel process is launched, drained and killed.
// Zero values fall back to the Default* constants.
type Options struct {
	Shell        string
	DrainWindow  time.Duration
	PollInterval time.Duration
	StopTimeout  time.Duration
	Cgroup       CgroupOptions
	Logger       *slog.Logger
}

// CgroupOptions places the tunnel into its own cgroup v2 when running as root on Linux.
type CgroupOptions struct {
	Enabled    bool
	Root       string
	CPUWeight  int
	IOWeight   int
	MemoryHigh int64
}

// Supervisor is the owner of the tunnel process handle. A nil handle is the
// NotRunning state; a non-nil handle is Running, whether or not the OS
// process is still alive.
type Supervisor struct {
	operator lib.Identity
	launch   string
	opts     Options
	logger   *slog.Logger

	// killTunnel is s.kill outside of tests.
	killTunnel func(h *processHandle) error

	mu     sync.Mutex
	handle *processHandle
}

type processHandle struct {
	id     string
	cmd    *exec.Cmd
	pid    int
	cgroup bool
	output *output_storage.OutputStorage

	// exited is closed by the waiter once the process is reaped and its
	// output fully copied into output.
	exited chan struct{}
	// terminated is closed by Stop to cut in-flight drains short.
	terminated    chan struct{}
	terminateOnce sync.Once

	// status fields
	mu       sync.RWMutex
	start    time.Time
	exitCode *int
	end      *time.Time

	// readMu serializes drains; cursor persists between them.
	readMu sync.Mutex
	cursor *output_storage.Cursor
}

// New creates a Supervisor for the given operator and launch command.
// The launch command is run as `<shell> -c <launchCommand>`.
func New(operator lib.Identity, launchCommand string, opts Options) (*Supervisor, error) {
	if operator == "" {
		return nil, errors.New("operator identity is required")
	}
	if launchCommand == "" {
		return nil, errors.New("launch command is required")
	}

	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.DrainWindow <= 0 {
		opts.DrainWindow = DefaultDrainWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollInterval > opts.DrainWindow {
		opts.PollInterval = opts.DrainWindow
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Cgroup.Root == "" {
		opts.Cgroup.Root = DefaultCgroupRoot
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Supervisor{
		operator: operator,
		launch:   launchCommand,
		opts:     opts,
		logger:   logger.With("component", "supervisor"),
	}
	s.killTunnel = s.kill
	return s, nil
}

// LaunchCommand returns the command the tunnel is started with.
func (s *Supervisor) LaunchCommand() string {
	return s.launch
}

func (s *Supervisor) authorize(caller lib.Identity, op string) error {
	if guard.Authorize(caller, s.operator) {
		return nil
	}
	s.logger.Warn("access denied", "op", op, "caller", string(caller))
	return lib.ErrAccessDenied
}

// current returns the handle under the state lock.
func (s *Supervisor) current() *processHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// discardLocked destroys the handle together with its buffered output.
// Callers hold s.mu.
func (s *Supervisor) discardLocked() {
	h := s.handle
	if h == nil {
		return
	}
	s.handle = nil
	h.terminate()
	h.cursor.Close()
	h.output.Stop()
}

func (h *processHandle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

func (h *processHandle) terminate() {
	h.terminateOnce.Do(func() { close(h.terminated) })
}
