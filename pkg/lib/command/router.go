package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/guard"
)

// Reply is the result of dispatching one command.
type Reply struct {
	Verb    string
	Text    string
	Outcome lib.Outcome
}

// Router authorizes commands and dispatches them to their handlers.
// Each Dispatch is isolated: a failing or panicking handler affects only its
// own reply.
type Router struct {
	lifecycle Lifecycle
	operator  lib.Identity
	logger    *slog.Logger
	now       func() time.Time

	table []Route
	index map[string]*Route
}

// NewRouter builds and validates the dispatch table.
func NewRouter(lifecycle Lifecycle, operator lib.Identity, logger *slog.Logger) (*Router, error) {
	if lifecycle == nil {
		return nil, errors.New("lifecycle is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Router{
		lifecycle: lifecycle,
		operator:  operator,
		logger:    logger.With("component", "router"),
		now:       time.Now,
	}

	r.table = r.routes()
	if err := Validate(r.table); err != nil {
		return nil, fmt.Errorf("invalid dispatch table: %w", err)
	}

	r.index = make(map[string]*Route)
	for i := range r.table {
		route := &r.table[i]
		r.index[route.Verb] = route
		for _, alias := range route.Aliases {
			r.index[alias] = route
		}
	}
	return r, nil
}

// Dispatch runs cmd and always returns a reply; it never panics.
func (r *Router) Dispatch(ctx context.Context, cmd lib.Command) (reply Reply) {
	verb := normalizeVerb(cmd.Verb)
	logger := r.logger.With("verb", verb, "sender", string(cmd.Sender.ID))

	route, ok := r.index[verb]
	if !ok {
		err := fmt.Errorf("%w: %q", lib.ErrUnknownCommand, verb)
		logger.Info("unknown command")
		return Reply{Verb: verb, Text: ErrorText(err), Outcome: lib.OutcomeOf(err)}
	}
	reply.Verb = route.Verb

	defer func() {
		if p := recover(); p != nil {
			logger.Error("command handler panicked", "panic", p, "stack", string(debug.Stack()))
			reply = Reply{Verb: route.Verb, Text: TextInternalError, Outcome: lib.OutcomeFault}
		}
	}()

	if route.Privileged && !guard.Authorize(cmd.Sender.ID, r.operator) {
		logger.Warn("access denied")
		return Reply{Verb: route.Verb, Text: TextAccessDenied, Outcome: lib.OutcomeDenied}
	}

	text, err := route.Handler(ctx, cmd)
	if err != nil {
		outcome := lib.OutcomeOf(err)
		if outcome == lib.OutcomeFault || outcome == lib.OutcomeSpawnFailed {
			logger.Error("command failed", "outcome", outcome.String(), "err", err)
		} else {
			logger.Info("command rejected", "outcome", outcome.String(), "err", err)
		}
		return Reply{Verb: route.Verb, Text: ErrorText(err), Outcome: outcome}
	}

	logger.Debug("command handled")
	return Reply{Verb: route.Verb, Text: text, Outcome: lib.OutcomeOK}
}

func (r *Router) handleStart(ctx context.Context, cmd lib.Command) (string, error) {
	res, err := r.lifecycle.Start(ctx, cmd.Sender.ID)
	if err != nil {
		return "", err
	}
	return startedText(res), nil
}

func (r *Router) handleStop(ctx context.Context, cmd lib.Command) (string, error) {
	if _, err := r.lifecycle.Stop(ctx, cmd.Sender.ID); err != nil {
		return "", err
	}
	return TextTerminated, nil
}

func (r *Router) handleStatus(_ context.Context, cmd lib.Command) (string, error) {
	res, err := r.lifecycle.Status(cmd.Sender.ID)
	if err != nil {
		return "", err
	}
	return statusText(res, r.now()), nil
}

func (r *Router) handleReadOutput(ctx context.Context, cmd lib.Command) (string, error) {
	res, err := r.lifecycle.ReadOutput(ctx, cmd.Sender.ID)
	if err != nil {
		return "", err
	}
	return outputText(res), nil
}

func (r *Router) handleWhoAmI(_ context.Context, cmd lib.Command) (string, error) {
	return whoAmIText(cmd.Sender), nil
}

func (r *Router) handleStartSession(context.Context, lib.Command) (string, error) {
	return TextBotStarted, nil
}

func (r *Router) handleHelp(context.Context, lib.Command) (string, error) {
	return helpText(r.table), nil
}
