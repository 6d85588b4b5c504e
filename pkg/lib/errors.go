package lib

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned when the sender is not the configured operator.
	ErrAccessDenied = errors.New("access denied")
	// ErrAlreadyRunning is returned by start while a tunnel handle exists.
	ErrAlreadyRunning = errors.New("ssh proxy already running")
	// ErrNotRunning is returned by stop and read_output while no handle exists.
	ErrNotRunning = errors.New("ssh proxy not running")
	// ErrUnknownCommand is returned for verbs missing from the dispatch table.
	ErrUnknownCommand = errors.New("unknown command")
)

// SpawnError reports that the OS refused to create the tunnel process.
// The supervisor stays NotRunning when it is returned.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TerminateError reports that killing the tunnel process failed.
// The supervisor stays Running when it is returned.
type TerminateError struct {
	PID int
	Err error
}

func (e *TerminateError) Error() string {
	return fmt.Sprintf("failed to terminate process %d: %v", e.PID, e.Err)
}

func (e *TerminateError) Unwrap() error { return e.Err }

// Outcome classifies the result of handling a command.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDenied
	OutcomeInvalidState
	OutcomeSpawnFailed
	OutcomeUnknownCommand
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDenied:
		return "denied"
	case OutcomeInvalidState:
		return "invalid_state"
	case OutcomeSpawnFailed:
		return "spawn_failed"
	case OutcomeUnknownCommand:
		return "unknown_command"
	default:
		return "fault"
	}
}

// OutcomeOf maps an error returned by the supervisor or router to its outcome.
func OutcomeOf(err error) Outcome {
	var spawnErr *SpawnError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAccessDenied):
		return OutcomeDenied
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning):
		return OutcomeInvalidState
	case errors.As(err, &spawnErr):
		return OutcomeSpawnFailed
	case errors.Is(err, ErrUnknownCommand):
		return OutcomeUnknownCommand
	default:
		return OutcomeFault
	}
}
