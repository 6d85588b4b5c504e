package supervisor

import (
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
)

type StatusResult struct {
	Command     string
	Status      lib.ProcessStatus
	OutputBytes int64
}

// Status reports whether a tunnel handle exists. It never changes state.
func (s *Supervisor) Status(caller lib.Identity) (*StatusResult, error) {
	if err := s.authorize(caller, "status"); err != nil {
		return nil, err
	}

	res := &StatusResult{Command: s.launch}

	h := s.current()
	if h == nil {
		res.Status = lib.ProcessStatus{State: lib.ProcessStateNotRunning}
		return res, nil
	}

	res.Status = h.status()
	res.OutputBytes = h.output.Len()
	return res, nil
}

func (h *processHandle) status() lib.ProcessStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := lib.ProcessStatus{
		State:     lib.ProcessStateRunning,
		ID:        h.id,
		PID:       h.pid,
		StartTime: h.start,
	}
	if h.exitCode != nil {
		code := *h.exitCode
		st.ExitCode = &code
	}
	if h.end != nil {
		t := *h.end
		st.EndTime = &t
	}
	return st
}
