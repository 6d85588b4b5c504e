package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	apiv1 "github.com/SanjoDeundiak/ssh-proxy-bot/api/v1"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/config"
)

// GRPCServer encapsulates TLS/mTLS configuration, gRPC server instance and listener.
type GRPCServer struct {
	lis net.Listener
	s   *grpc.Server
}

// NewGRPCServer constructs a TLS-enabled gRPC server that requires client certs (mTLS),
// registers the TunnelBot service, and prepares it to serve on the configured address.
func NewGRPCServer(tc config.TransportConfig, service apiv1.TunnelBotServer, logger *slog.Logger) (*GRPCServer, error) {
	tlsConfig, err := tc.ServerTLS()
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", tc.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s := newServer(logger, grpc.Creds(credentials.NewTLS(tlsConfig)))
	apiv1.RegisterTunnelBotServer(s, service)

	return &GRPCServer{lis: lis, s: s}, nil
}

func newServer(logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = discardLogger()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(recoverUnary(logger), injectSenderUnary))
	return grpc.NewServer(opts...)
}

// recoverUnary turns a panic in a handler into codes.Internal for that call only.
func recoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("rpc handler panicked", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "INTERNAL ERROR")
			}
		}()
		return handler(ctx, req)
	}
}

// Serve starts serving gRPC on the configured listener.
func (g *GRPCServer) Serve() error {
	return g.s.Serve(g.lis)
}

// Addr returns the network address the server is bound to.
func (g *GRPCServer) Addr() net.Addr { return g.lis.Addr() }

// Stop gracefully stops the gRPC server.
func (g *GRPCServer) Stop() { g.s.GracefulStop() }
