package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
)

type senderContextKey struct{}

func extractSenderFromContext(ctx context.Context) *lib.Sender {
	if v := ctx.Value(senderContextKey{}); v != nil {
		if sender, ok := v.(lib.Sender); ok {
			return &sender
		}
	}
	return nil
}

// extractSenderFromTls reads the sender from the client certificate: the
// SPIFFE trust domain is the identity, the common name is the display name.
func extractSenderFromTls(ctx context.Context) *lib.Sender {
	// First, check if it was already injected into context.
	if v := extractSenderFromContext(ctx); v != nil {
		return v
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return nil
	}

	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil
	}

	state := ti.State

	if len(state.PeerCertificates) == 0 || state.PeerCertificates[0] == nil {
		return nil
	}

	leaf := state.PeerCertificates[0]

	for _, uri := range leaf.URIs {
		if uri == nil {
			continue
		}
		if uri.Scheme == "spiffe" && uri.Host != "" {
			// spiffe://operator -> "operator"
			return &lib.Sender{ID: lib.Identity(uri.Host), Name: leaf.Subject.CommonName}
		}
	}

	return nil
}

func injectSender(ctx context.Context, sender lib.Sender) context.Context {
	return context.WithValue(ctx, senderContextKey{}, sender)
}

// injectSenderUnary rejects calls without a SPIFFE ID before they reach a handler.
func injectSenderUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	sender := extractSenderFromTls(ctx)

	if sender == nil {
		return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	return handler(injectSender(ctx, *sender), req)
}
