package supervisor

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
)

// StopResult returns the final status of the tunnel that was stopped.
type StopResult struct {
	ID     string
	Status lib.ProcessStatus
}

// Stop kills the tunnel and discards its handle and buffered output.
// If the kill fails the handle is kept and a *lib.TerminateError is returned.
func (s *Supervisor) Stop(ctx context.Context, caller lib.Identity) (*StopResult, error) {
	if err := s.authorize(caller, "stop"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.handle
	if h == nil {
		return nil, lib.ErrNotRunning
	}

	if err := s.terminateLocked(ctx, h); err != nil {
		return nil, err
	}

	res := &StopResult{ID: h.id, Status: h.status()}
	s.discardLocked()

	s.logger.Info("tunnel terminated", "id", h.id, "pid", h.pid)

	return res, nil
}

// Shutdown kills a running tunnel when the supervisor itself exits.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.handle
	if h == nil {
		return nil
	}
	if err := s.terminateLocked(ctx, h); err != nil {
		return err
	}
	s.discardLocked()
	return nil
}

// terminateLocked kills h and waits, bounded by StopTimeout and ctx, for the
// waiter to reap it. Callers hold s.mu.
func (s *Supervisor) terminateLocked(ctx context.Context, h *processHandle) error {
	if !h.hasExited() {
		if err := s.killTunnel(h); err != nil {
			s.logger.Error("failed to kill tunnel", "id", h.id, "pid", h.pid, "err", err)
			return &lib.TerminateError{PID: h.pid, Err: err}
		}
	}

	// Cut in-flight drains short, they return what is already buffered.
	h.terminate()

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-h.exited:
	case <-timer.C:
		s.logger.Warn("tunnel not reaped after kill", "id", h.id, "pid", h.pid, "timeout", s.opts.StopTimeout)
	case <-ctx.Done():
	}
	return nil
}

// kill prefers cgroup.kill, otherwise SIGKILLs the whole process group so the
// shell and ssh die together.
func (s *Supervisor) kill(h *processHandle) error {
	if h.cgroup {
		err := KillCgroup(h.id, s.opts.Cgroup)
		if err == nil {
			return nil
		}
		s.logger.Warn("cgroup kill failed, falling back to process group", "id", h.id, "err", err)
	}

	err := unix.Kill(-h.pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}

	if perr := h.cmd.Process.Kill(); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
		return errors.Join(err, perr)
	}
	return nil
}
