package main

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/SanjoDeundiak/ssh-proxy-bot/api/v1"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/command"
)

// Dispatcher runs one command and always produces a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd lib.Command) command.Reply
}

type TunnelBotServiceServer struct {
	apiv1.UnimplementedTunnelBotServer
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewTunnelBotServiceServer(dispatcher Dispatcher, logger *slog.Logger) *TunnelBotServiceServer {
	if logger == nil {
		logger = discardLogger()
	}
	return &TunnelBotServiceServer{dispatcher: dispatcher, logger: logger}
}

func (s *TunnelBotServiceServer) Command(ctx context.Context, request *apiv1.CommandRequest) (*apiv1.CommandResponse, error) {
	sender := extractSenderFromContext(ctx)

	if sender == nil {
		return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	reply := s.dispatcher.Dispatch(ctx, lib.Command{Verb: request.GetVerb(), Sender: *sender})
	s.logger.Debug("command replied", "verb", reply.Verb, "sender", string(sender.ID), "outcome", reply.Outcome.String())

	if reply.Outcome != lib.OutcomeOK {
		return nil, status.Error(outcomeCode(reply.Outcome), reply.Text)
	}
	return &apiv1.CommandResponse{Verb: reply.Verb, Text: reply.Text}, nil
}

// outcomeCode maps a reply outcome to the gRPC status code sent to the client.
func outcomeCode(o lib.Outcome) codes.Code {
	switch o {
	case lib.OutcomeOK:
		return codes.OK
	case lib.OutcomeDenied:
		return codes.PermissionDenied
	case lib.OutcomeInvalidState:
		return codes.FailedPrecondition
	case lib.OutcomeSpawnFailed:
		return codes.Aborted
	case lib.OutcomeUnknownCommand:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
