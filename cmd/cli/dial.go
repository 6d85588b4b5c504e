package main

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	apiv1 "github.com/SanjoDeundiak/ssh-proxy-bot/api/v1"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/config"
)

// dial connects to tunnelbotd using the transport section of the config
// file and TUNNELBOT_TRANSPORT_* environment variables.
func dial(configPath string) (*grpc.ClientConn, error) {
	v, err := config.NewViper(configPath)
	if err != nil {
		return nil, err
	}
	tc, err := config.LoadTransport(v)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := tc.ClientTLS()
	if err != nil {
		return nil, err
	}

	return grpc.NewClient(tc.Address, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
}

// replyError is a command the server refused. Its text was already printed.
type replyError struct {
	text string
}

func (e *replyError) Error() string { return e.text }

// send issues verb and returns the reply text. Refusals come back as *replyError.
func send(ctx context.Context, client apiv1.TunnelBotClient, verb string) (string, error) {
	resp, err := client.Command(ctx, &apiv1.CommandRequest{Verb: verb})
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded || st.Code() == codes.Canceled {
			return "", err
		}
		return "", &replyError{text: st.Message()}
	}
	return resp.GetText(), nil
}

func isReplyError(err error) bool {
	var re *replyError
	return errors.As(err, &re)
}
