package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/supervisor"
)

// Operator-facing reply texts.
const (
	TextAccessDenied   = "ACCESS DENIED"
	TextAlreadyRunning = "SSH PROXY ALREADY RUNNING"
	TextNotRunning     = "SSH PROXY NOT RUNNING"
	TextSpawnFailed    = "FAILED TO START SSH PROXY"
	TextUnknownCommand = "UNKNOWN COMMAND"
	TextInternalError  = "INTERNAL ERROR"
	TextBotStarted     = "Bot started"
	TextStatusRunning  = "ssh proxy running"
	TextStatusStopped  = "ssh proxy not running"
	TextStarted        = "ssh proxy started"
	TextTerminated     = "ssh proxy terminated"
	TextOutputHeader   = "STDOUT:"
	TextOutputExited   = "(ssh proxy exited)"
)

// ErrorText maps an error to the reply shown to the operator. Faults get a
// generic text so internal details stay in the logs.
func ErrorText(err error) string {
	switch lib.OutcomeOf(err) {
	case lib.OutcomeDenied:
		return TextAccessDenied
	case lib.OutcomeInvalidState:
		if errors.Is(err, lib.ErrAlreadyRunning) {
			return TextAlreadyRunning
		}
		return TextNotRunning
	case lib.OutcomeSpawnFailed:
		return TextSpawnFailed
	case lib.OutcomeUnknownCommand:
		return TextUnknownCommand
	default:
		return TextInternalError
	}
}

func startedText(res *supervisor.StartResult) string {
	return fmt.Sprintf("%s (session %s, pid %d)", TextStarted, lib.ShortID(res.ID), res.PID)
}

func statusText(res *supervisor.StatusResult, now time.Time) string {
	st := res.Status
	if st.State != lib.ProcessStateRunning {
		return TextStatusStopped
	}

	var sb strings.Builder
	sb.WriteString(TextStatusRunning)
	if st.Exited() {
		code := -1
		if st.ExitCode != nil {
			code = *st.ExitCode
		}
		fmt.Fprintf(&sb, " (process exited with code %d)", code)
	}
	fmt.Fprintf(&sb, "\nsession: %s\npid: %d", lib.ShortID(st.ID), st.PID)
	if !st.Exited() {
		fmt.Fprintf(&sb, "\nuptime: %s", now.Sub(st.StartTime).Truncate(time.Second))
	}
	fmt.Fprintf(&sb, "\noutput: %d bytes", res.OutputBytes)
	return sb.String()
}

func outputText(res *supervisor.OutputResult) string {
	text := TextOutputHeader + "\n" + strings.Join(res.Lines, "\n")
	if res.Exited {
		text += "\n" + TextOutputExited
	}
	return text
}

func whoAmIText(sender lib.Sender) string {
	return fmt.Sprintf("user id: %s\nusername: %s", sender.ID, sender.Name)
}

func helpText(routes []Route) string {
	var sb strings.Builder
	for i, route := range routes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "/%s - %s", route.Verb, route.Summary)
		if route.Privileged {
			sb.WriteString(" (operator only")
			if route.Expects == NotRunning || route.Expects == Running {
				fmt.Fprintf(&sb, ", tunnel %s", route.Expects)
			}
			sb.WriteByte(')')
		}
	}
	return sb.String()
}
