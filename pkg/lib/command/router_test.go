package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/supervisor"
)

var (
	operator = lib.Sender{ID: "42", Name: "milselarch"}
	stranger = lib.Sender{ID: "7", Name: "mallory"}
)

func newTestRouter(t *testing.T, launch string) (*Router, *supervisor.Supervisor) {
	t.Helper()
	sup, err := supervisor.New(operator.ID, launch, supervisor.Options{})
	if err != nil {
		t.Fatalf("supervisor.New failed: %v", err)
	}
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	r, err := NewRouter(sup, operator.ID, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return r, sup
}

func send(t *testing.T, r *Router, verb string, sender lib.Sender) Reply {
	t.Helper()
	return r.Dispatch(context.Background(), lib.Command{Verb: verb, Sender: sender})
}

func state(t *testing.T, sup *supervisor.Supervisor) lib.ProcessState {
	t.Helper()
	res, err := sup.Status(operator.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	return res.Status.State
}

func TestScenarioA_StartTwice(t *testing.T) {
	r, sup := newTestRouter(t, "sleep 10")

	reply := send(t, r, VerbStart, operator)
	if reply.Outcome != lib.OutcomeOK || !strings.Contains(reply.Text, "started") {
		t.Fatalf("expected started reply, got %+v", reply)
	}
	if state(t, sup) != lib.ProcessStateRunning {
		t.Fatalf("expected Running after start")
	}

	reply = send(t, r, VerbStart, operator)
	if reply.Text != TextAlreadyRunning || reply.Outcome != lib.OutcomeInvalidState {
		t.Fatalf("expected %q, got %+v", TextAlreadyRunning, reply)
	}
}

func TestScenarioB_StrangerCannotStop(t *testing.T) {
	r, sup := newTestRouter(t, "sleep 10")

	if reply := send(t, r, VerbStart, operator); reply.Outcome != lib.OutcomeOK {
		t.Fatalf("start failed: %+v", reply)
	}

	reply := send(t, r, VerbStop, stranger)
	if reply.Text != TextAccessDenied || reply.Outcome != lib.OutcomeDenied {
		t.Fatalf("expected %q, got %+v", TextAccessDenied, reply)
	}
	if state(t, sup) != lib.ProcessStateRunning {
		t.Fatalf("expected tunnel to keep running")
	}
}

func TestScenarioC_StopThenStatus(t *testing.T) {
	r, sup := newTestRouter(t, "sleep 10")

	send(t, r, VerbStart, operator)

	reply := send(t, r, VerbStop, operator)
	if reply.Outcome != lib.OutcomeOK || !strings.Contains(reply.Text, "terminated") {
		t.Fatalf("expected terminated reply, got %+v", reply)
	}
	if state(t, sup) != lib.ProcessStateNotRunning {
		t.Fatalf("expected NotRunning after stop")
	}

	if reply := send(t, r, VerbStatus, operator); reply.Text != TextStatusStopped {
		t.Fatalf("expected %q, got %+v", TextStatusStopped, reply)
	}
	if reply := send(t, r, VerbStop, operator); reply.Text != TextNotRunning {
		t.Fatalf("expected %q on second stop, got %+v", TextNotRunning, reply)
	}
}

func TestScenarioD_ReadOutputInOrder(t *testing.T) {
	r, _ := newTestRouter(t, "echo A; echo B; sleep 10")

	send(t, r, VerbStart, operator)

	var collected []string
	deadline := time.Now().Add(3 * time.Second)
	for len(collected) < 2 && time.Now().Before(deadline) {
		reply := send(t, r, VerbReadOutput, operator)
		if reply.Outcome != lib.OutcomeOK || !strings.HasPrefix(reply.Text, TextOutputHeader+"\n") {
			t.Fatalf("unexpected read_output reply: %+v", reply)
		}
		body := strings.TrimPrefix(reply.Text, TextOutputHeader+"\n")
		if body != "" {
			collected = append(collected, strings.Split(body, "\n")...)
		}
	}

	if got := strings.Join(collected, "\n"); got != "A\nB" {
		t.Fatalf("expected %q, got %q", "A\nB", got)
	}
}

func TestPrivilegedVerbsDenyStrangers(t *testing.T) {
	r, sup := newTestRouter(t, "sleep 10")

	for _, verb := range []string{VerbStart, VerbStop, VerbStatus, VerbReadOutput, "launch_proxy", "read_stdout"} {
		reply := send(t, r, verb, stranger)
		if reply.Text != TextAccessDenied {
			t.Fatalf("%s: expected %q, got %+v", verb, TextAccessDenied, reply)
		}
	}
	if state(t, sup) != lib.ProcessStateNotRunning {
		t.Fatalf("stranger changed state")
	}

	// Denial is the same whether or not a tunnel runs
	send(t, r, VerbStart, operator)
	if reply := send(t, r, VerbStatus, stranger); reply.Text != TextAccessDenied {
		t.Fatalf("expected denial while running, got %+v", reply)
	}
}

func TestReadOutputWhileNotRunning(t *testing.T) {
	r, sup := newTestRouter(t, "echo never")

	if reply := send(t, r, VerbReadOutput, operator); reply.Text != TextNotRunning {
		t.Fatalf("expected %q, got %+v", TextNotRunning, reply)
	}
	if state(t, sup) != lib.ProcessStateNotRunning {
		t.Fatalf("read_output spawned a process")
	}
}

func TestStatusRunningDetails(t *testing.T) {
	r, _ := newTestRouter(t, "sleep 10")
	send(t, r, VerbStart, operator)

	for i := 0; i < 3; i++ {
		reply := send(t, r, VerbStatus, operator)
		if !strings.HasPrefix(reply.Text, TextStatusRunning) || !strings.Contains(reply.Text, "pid: ") {
			t.Fatalf("unexpected status reply: %q", reply.Text)
		}
	}
}

func TestOpenVerbs(t *testing.T) {
	r, _ := newTestRouter(t, "sleep 10")

	reply := send(t, r, VerbWhoAmI, stranger)
	if reply.Outcome != lib.OutcomeOK || reply.Text != "user id: 7\nusername: mallory" {
		t.Fatalf("unexpected whoami reply: %+v", reply)
	}
	if reply := send(t, r, "user_details", operator); !strings.Contains(reply.Text, "user id: 42") {
		t.Fatalf("unexpected user_details reply: %+v", reply)
	}
	if reply := send(t, r, VerbStartSession, stranger); reply.Text != TextBotStarted {
		t.Fatalf("unexpected start_session reply: %+v", reply)
	}
	reply = send(t, r, VerbHelp, stranger)
	for _, want := range []string{
		"/start - start the ssh reverse tunnel (operator only, tunnel not running)",
		"/read_output - return tunnel output produced since the last read (operator only, tunnel running)",
		"/status - report whether the tunnel is running (operator only)\n",
		"/whoami - show your identity\n",
	} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("help reply missing %q:\n%s", want, reply.Text)
		}
	}
}

func TestChatStyleVerbsAndUnknown(t *testing.T) {
	r, sup := newTestRouter(t, "sleep 10")

	if reply := send(t, r, "/Launch_Proxy@proxy_bot", operator); reply.Outcome != lib.OutcomeOK {
		t.Fatalf("expected chat-style alias to start, got %+v", reply)
	}
	if state(t, sup) != lib.ProcessStateRunning {
		t.Fatalf("expected Running")
	}

	reply := send(t, r, "reboot", operator)
	if reply.Text != TextUnknownCommand || reply.Outcome != lib.OutcomeUnknownCommand {
		t.Fatalf("expected unknown command, got %+v", reply)
	}
}

func TestSpawnFailureReply(t *testing.T) {
	sup, err := supervisor.New(operator.ID, "sleep 10", supervisor.Options{Shell: "/nonexistent/shell"})
	if err != nil {
		t.Fatalf("supervisor.New failed: %v", err)
	}
	r, err := NewRouter(sup, operator.ID, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	reply := send(t, r, VerbStart, operator)
	if reply.Text != TextSpawnFailed || reply.Outcome != lib.OutcomeSpawnFailed {
		t.Fatalf("expected spawn failure reply, got %+v", reply)
	}
	if reply := send(t, r, VerbStatus, operator); reply.Text != TextStatusStopped {
		t.Fatalf("expected not running after spawn failure, got %+v", reply)
	}
}

// faultyLifecycle panics or fails on demand.
type faultyLifecycle struct {
	panicOnStart bool
	stopErr      error
}

func (f *faultyLifecycle) Start(context.Context, lib.Identity) (*supervisor.StartResult, error) {
	if f.panicOnStart {
		panic("boom")
	}
	return &supervisor.StartResult{ID: "0123456789", PID: 1}, nil
}

func (f *faultyLifecycle) Stop(context.Context, lib.Identity) (*supervisor.StopResult, error) {
	return nil, f.stopErr
}

func (f *faultyLifecycle) Status(lib.Identity) (*supervisor.StatusResult, error) {
	return &supervisor.StatusResult{}, nil
}

func (f *faultyLifecycle) ReadOutput(context.Context, lib.Identity) (*supervisor.OutputResult, error) {
	return &supervisor.OutputResult{}, nil
}

func TestFaultsAreIsolated(t *testing.T) {
	lc := &faultyLifecycle{panicOnStart: true, stopErr: &lib.TerminateError{PID: 1, Err: errors.New("EPERM")}}
	r, err := NewRouter(lc, operator.ID, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	reply := send(t, r, VerbStart, operator)
	if reply.Text != TextInternalError || reply.Outcome != lib.OutcomeFault {
		t.Fatalf("expected generic fault for panic, got %+v", reply)
	}

	reply = send(t, r, VerbStop, operator)
	if reply.Text != TextInternalError || reply.Outcome != lib.OutcomeFault {
		t.Fatalf("expected generic fault for kill failure, got %+v", reply)
	}
	if strings.Contains(reply.Text, "EPERM") {
		t.Fatalf("fault reply leaked internal detail: %q", reply.Text)
	}

	// The router keeps serving after faults
	if reply := send(t, r, VerbStatus, operator); reply.Outcome != lib.OutcomeOK {
		t.Fatalf("expected status to succeed after faults, got %+v", reply)
	}
}

func TestValidateRejectsBadTables(t *testing.T) {
	noop := func(context.Context, lib.Command) (string, error) { return "", nil }

	cases := []struct {
		name   string
		routes []Route
	}{
		{"duplicate verb", []Route{{Verb: "start", Handler: noop}, {Verb: "go", Aliases: []string{"start"}, Handler: noop}}},
		{"missing handler", []Route{{Verb: "start"}}},
		{"non-normalized verb", []Route{{Verb: "Start", Handler: noop}}},
		{"privileged without state", []Route{{Verb: "start", Privileged: true, Handler: noop}}},
		{"open with state", []Route{{Verb: "whoami", Expects: Running, Handler: noop}}},
		{"unknown state", []Route{{Verb: "start", Privileged: true, Expects: ExpectedState(42), Handler: noop}}},
	}
	for _, tc := range cases {
		if err := Validate(tc.routes); err == nil {
			t.Fatalf("%s: expected table to be rejected", tc.name)
		}
	}

	ok := []Route{
		{Verb: "start", Privileged: true, Expects: NotRunning, Handler: noop},
		{Verb: "status", Privileged: true, Expects: AnyState, Handler: noop},
		{Verb: "whoami", Handler: noop},
	}
	if err := Validate(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRoutesDeclareExpectedState(t *testing.T) {
	r, _ := newTestRouter(t, "sleep 10")

	want := map[string]ExpectedState{
		VerbStart:        NotRunning,
		VerbStop:         Running,
		VerbStatus:       AnyState,
		VerbReadOutput:   Running,
		VerbWhoAmI:       StateUnspecified,
		VerbStartSession: StateUnspecified,
		VerbHelp:         StateUnspecified,
	}
	if len(r.table) != len(want) {
		t.Fatalf("expected %d routes, got %d", len(want), len(r.table))
	}
	for _, route := range r.table {
		if got, ok := want[route.Verb]; !ok || got != route.Expects {
			t.Fatalf("route %q expects %s, want %s", route.Verb, route.Expects, got)
		}
		if route.Privileged != (route.Expects != StateUnspecified) {
			t.Fatalf("route %q: privileged=%v but expects %s", route.Verb, route.Privileged, route.Expects)
		}
	}

	// Chat aliases resolve to the same rows
	for alias, verb := range map[string]string{"launch_proxy": VerbStart, "proxy_status": VerbStatus, "read_stdout": VerbReadOutput} {
		if got := r.index[alias].Verb; got != verb {
			t.Fatalf("alias %q resolves to %q, want %q", alias, got, verb)
		}
	}
}

func TestErrorText(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{lib.ErrAccessDenied, TextAccessDenied},
		{lib.ErrAlreadyRunning, TextAlreadyRunning},
		{lib.ErrNotRunning, TextNotRunning},
		{lib.ErrUnknownCommand, TextUnknownCommand},
		{&lib.SpawnError{Command: "x", Err: errors.New("enoent")}, TextSpawnFailed},
		{errors.New("disk on fire"), TextInternalError},
	}
	for _, tc := range cases {
		if got := ErrorText(tc.err); got != tc.want {
			t.Fatalf("ErrorText(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
