package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/output_storage"
)

type StartResult struct {
	ID     string
	PID    int
	Status lib.ProcessStatus
}

// Start launches the tunnel. It fails with lib.ErrAlreadyRunning while a
// live tunnel exists. A handle whose process already exited is reaped first.
func (s *Supervisor) Start(ctx context.Context, caller lib.Identity) (*StartResult, error) {
	if err := s.authorize(caller, "start"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		if !s.handle.hasExited() {
			return nil, lib.ErrAlreadyRunning
		}
		st := s.handle.status()
		s.logger.Info("reaping exited tunnel", "id", st.ID, "exit_code", st.ExitCode)
		s.discardLocked()
	}

	h, err := s.spawn()
	if err != nil {
		s.logger.Error("failed to start tunnel", "command", s.launch, "err", err)
		return nil, err
	}
	s.handle = h

	s.logger.Info("tunnel started", "id", h.id, "pid", h.pid)

	return &StartResult{ID: h.id, PID: h.pid, Status: h.status()}, nil
}

func (s *Supervisor) spawn() (*processHandle, error) {
	id := lib.NewID()

	cmd := exec.Command(s.opts.Shell, "-c", s.launch)

	sysProcAttr, err := GetSysProcAttr(id, s.opts.Cgroup)
	if errors.Is(err, ErrCgroupsUnavailable) {
		s.logger.Warn("starting tunnel without cgroup", "id", id, "err", err)
		err = nil
	}
	if err != nil {
		return nil, &lib.SpawnError{Command: s.launch, Err: err}
	}
	cmd.SysProcAttr = sysProcAttr.Raw
	// A descendant that leaves the process group may keep the output pipe
	// open; stop waiting for it once the shell itself is gone.
	cmd.WaitDelay = s.opts.StopTimeout
	inCgroup := sysProcAttr.File != nil

	// stdout and stderr share one writer, so exec copies them through a
	// single goroutine and their relative order is kept.
	// cmd.Stdin is left nil, so it will use /dev/null
	output := output_storage.RunNewOutputStorage()
	cmd.Stdout = output
	cmd.Stderr = output

	h := &processHandle{
		id:         id,
		cmd:        cmd,
		cgroup:     inCgroup,
		output:     output,
		exited:     make(chan struct{}),
		terminated: make(chan struct{}),
		cursor:     output.NewCursor(),
	}

	err = cmd.Start()
	if sysProcAttr.File != nil {
		_ = sysProcAttr.File.Close()
	}
	if err != nil {
		h.cursor.Close()
		output.Stop()
		if inCgroup {
			_ = CleanupCgroup(id, s.opts.Cgroup)
		}
		return nil, &lib.SpawnError{Command: s.launch, Err: err}
	}

	h.pid = cmd.Process.Pid
	h.start = time.Now()

	go s.wait(h)

	return h, nil
}

// wait reaps the process and records its exit status.
func (s *Supervisor) wait(h *processHandle) {
	err := h.cmd.Wait()

	// Wait returns after the output copy finished, so nothing is appended past this point.
	h.output.Stop()

	code := 0
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && h.cmd.ProcessState != nil:
		code = h.cmd.ProcessState.ExitCode()
	default:
		code = -1
	}
	now := time.Now()

	h.mu.Lock()
	h.exitCode = &code
	h.end = &now
	h.mu.Unlock()

	close(h.exited)

	s.logger.Info("tunnel exited", "id", h.id, "pid", h.pid, "exit_code", code, "err", err)

	if h.cgroup {
		if err := CleanupCgroup(h.id, s.opts.Cgroup); err != nil {
			s.logger.Warn("failed to remove cgroup", "id", h.id, "err", err)
		}
	}
}
