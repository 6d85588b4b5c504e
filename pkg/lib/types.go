package lib

import "time"

// ProcessState mirrors the two lifecycle states of the supervised tunnel.
type ProcessState int

const (
	ProcessStateNotRunning ProcessState = iota
	ProcessStateRunning
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "running"
	default:
		return "not running"
	}
}

// Identity is the opaque sender identity delivered by the transport
// (a numeric chat id, a SPIFFE trust domain, ...).
type Identity string

// Sender describes who issued a command.
type Sender struct {
	ID   Identity
	Name string
}

// Command is a verb issued by a sender. Commands carry no payload.
type Command struct {
	Verb   string
	Sender Sender
}

// ProcessStatus captures runtime state and timestamps of the tunnel process.
// ExitCode and EndTime are set once the child has exited.
type ProcessStatus struct {
	State     ProcessState
	ID        string
	PID       int
	StartTime time.Time
	ExitCode  *int
	EndTime   *time.Time
}

// Exited reports whether the child behind a running handle already exited.
func (st ProcessStatus) Exited() bool {
	return st.State == ProcessStateRunning && st.EndTime != nil
}
