// Package command maps operator verbs onto supervisor operations through a
// fixed dispatch table and turns their results into reply text.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/supervisor"
)

// Verbs understood by the router.
const (
	VerbStart        = "start"
	VerbStop         = "stop"
	VerbStatus       = "status"
	VerbReadOutput   = "read_output"
	VerbWhoAmI       = "whoami"
	VerbStartSession = "start_session"
	VerbHelp         = "help"
)

// ExpectedState is the lifecycle state a verb needs to succeed. Privileged
// routes must declare one; open routes leave it unspecified.
type ExpectedState int

const (
	StateUnspecified ExpectedState = iota
	AnyState
	NotRunning
	Running
)

func (s ExpectedState) String() string {
	switch s {
	case AnyState:
		return "any"
	case NotRunning:
		return "not running"
	case Running:
		return "running"
	default:
		return "unspecified"
	}
}

// Handler executes one verb and returns the reply text.
type Handler func(ctx context.Context, cmd lib.Command) (string, error)

// Route is one row of the dispatch table.
type Route struct {
	Verb       string
	Aliases    []string
	Summary    string
	Privileged bool
	Expects    ExpectedState
	Handler    Handler
}

// Lifecycle is the part of the supervisor the router drives.
type Lifecycle interface {
	Start(ctx context.Context, caller lib.Identity) (*supervisor.StartResult, error)
	Stop(ctx context.Context, caller lib.Identity) (*supervisor.StopResult, error)
	Status(caller lib.Identity) (*supervisor.StatusResult, error)
	ReadOutput(ctx context.Context, caller lib.Identity) (*supervisor.OutputResult, error)
}

// routes builds the dispatch table. Aliases keep the chat command names
// launch_proxy, stop_proxy and friends working.
func (r *Router) routes() []Route {
	return []Route{
		{
			Verb:       VerbStart,
			Aliases:    []string{"launch_proxy"},
			Summary:    "start the ssh reverse tunnel",
			Privileged: true,
			Expects:    NotRunning,
			Handler:    r.handleStart,
		},
		{
			Verb:       VerbStop,
			Aliases:    []string{"stop_proxy"},
			Summary:    "kill the ssh reverse tunnel",
			Privileged: true,
			Expects:    Running,
			Handler:    r.handleStop,
		},
		{
			Verb:       VerbStatus,
			Aliases:    []string{"proxy_status"},
			Summary:    "report whether the tunnel is running",
			Privileged: true,
			Expects:    AnyState,
			Handler:    r.handleStatus,
		},
		{
			Verb:       VerbReadOutput,
			Aliases:    []string{"read_stdout", "logs"},
			Summary:    "return tunnel output produced since the last read",
			Privileged: true,
			Expects:    Running,
			Handler:    r.handleReadOutput,
		},
		{
			Verb:    VerbWhoAmI,
			Aliases: []string{"user_details"},
			Summary: "show your identity",
			Handler: r.handleWhoAmI,
		},
		{
			Verb:    VerbStartSession,
			Summary: "check that the bot is alive",
			Handler: r.handleStartSession,
		},
		{
			Verb:    VerbHelp,
			Summary: "list commands",
			Handler: r.handleHelp,
		},
	}
}

// Validate checks the table once at startup: names are normalized and
// unique, every route has a handler, privileged routes declare the state
// they need and open routes declare none.
func Validate(routes []Route) error {
	seen := map[string]string{}
	var errs []error
	for _, route := range routes {
		if route.Handler == nil {
			errs = append(errs, fmt.Errorf("verb %q has no handler", route.Verb))
		}
		switch {
		case route.Expects < StateUnspecified || route.Expects > Running:
			errs = append(errs, fmt.Errorf("verb %q has invalid expected state %d", route.Verb, int(route.Expects)))
		case route.Privileged && route.Expects == StateUnspecified:
			errs = append(errs, fmt.Errorf("privileged verb %q must declare its expected state", route.Verb))
		case !route.Privileged && route.Expects != StateUnspecified:
			errs = append(errs, fmt.Errorf("open verb %q must not depend on tunnel state, expects %s", route.Verb, route.Expects))
		}
		for _, name := range append([]string{route.Verb}, route.Aliases...) {
			if name == "" || name != normalizeVerb(name) {
				errs = append(errs, fmt.Errorf("verb %q of %q is not a normalized name", name, route.Verb))
				continue
			}
			if owner, ok := seen[name]; ok {
				errs = append(errs, fmt.Errorf("verb %q registered by both %q and %q", name, owner, route.Verb))
				continue
			}
			seen[name] = route.Verb
		}
	}
	return errors.Join(errs...)
}

// normalizeVerb accepts chat-style input such as "/Start@proxy_bot".
func normalizeVerb(verb string) string {
	verb = strings.TrimSpace(verb)
	verb = strings.TrimPrefix(verb, "/")
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	if i := strings.IndexAny(verb, " \t\n"); i >= 0 {
		verb = verb[:i]
	}
	return strings.ToLower(verb)
}
