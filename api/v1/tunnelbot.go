// Package apiv1 defines the TunnelBot gRPC service. Messages travel as
// google.protobuf.Struct values so the service needs no generated code.
package apiv1

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName           = "tunnelbot.v1.TunnelBot"
	CommandFullMethodName = "/" + ServiceName + "/Command"
)

// CommandRequest carries a single verb. The sender is taken from the
// client certificate, never from the request.
type CommandRequest struct {
	Verb string
}

// CommandResponse is the reply to a command that succeeded. Failed commands
// are returned as gRPC status errors whose message is the reply text.
type CommandResponse struct {
	Verb string
	Text string
}

func (r *CommandRequest) GetVerb() string {
	if r == nil {
		return ""
	}
	return r.Verb
}

func (r *CommandResponse) GetText() string {
	if r == nil {
		return ""
	}
	return r.Text
}

// Struct encodes the request.
func (r *CommandRequest) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"verb": structpb.NewStringValue(r.GetVerb()),
	}}
}

// Struct encodes the response.
func (r *CommandResponse) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"verb": structpb.NewStringValue(r.Verb),
		"text": structpb.NewStringValue(r.Text),
	}}
}

// DecodeCommandRequest reads a request. A missing verb decodes as empty.
func DecodeCommandRequest(s *structpb.Struct) (*CommandRequest, error) {
	verb, err := stringField(s, "verb")
	if err != nil {
		return nil, err
	}
	return &CommandRequest{Verb: verb}, nil
}

// DecodeCommandResponse reads a response.
func DecodeCommandResponse(s *structpb.Struct) (*CommandResponse, error) {
	verb, err := stringField(s, "verb")
	if err != nil {
		return nil, err
	}
	text, err := stringField(s, "text")
	if err != nil {
		return nil, err
	}
	return &CommandResponse{Verb: verb, Text: text}, nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok || v == nil {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", name)
	}
	return sv.StringValue, nil
}

// TunnelBotServer is the server API for the TunnelBot service.
type TunnelBotServer interface {
	Command(context.Context, *CommandRequest) (*CommandResponse, error)
}

// UnimplementedTunnelBotServer can be embedded to have forward compatible implementations.
type UnimplementedTunnelBotServer struct{}

func (UnimplementedTunnelBotServer) Command(context.Context, *CommandRequest) (*CommandResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Command not implemented")
}

func RegisterTunnelBotServer(s grpc.ServiceRegistrar, srv TunnelBotServer) {
	s.RegisterService(&TunnelBot_ServiceDesc, srv)
}

func commandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r, err := DecodeCommandRequest(req.(*structpb.Struct))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := srv.(TunnelBotServer).Command(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp.Struct(), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CommandFullMethodName,
	}
	return interceptor(ctx, in, info, call)
}

// TunnelBot_ServiceDesc is the grpc.ServiceDesc for the TunnelBot service.
var TunnelBot_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TunnelBotServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Command",
			Handler:    commandHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// TunnelBotClient is the client API for the TunnelBot service.
type TunnelBotClient interface {
	Command(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error)
}

type tunnelBotClient struct {
	cc grpc.ClientConnInterface
}

func NewTunnelBotClient(cc grpc.ClientConnInterface) TunnelBotClient {
	return &tunnelBotClient{cc: cc}
}

func (c *tunnelBotClient) Command(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CommandFullMethodName, in.Struct(), out, opts...); err != nil {
		return nil, err
	}
	resp, err := DecodeCommandResponse(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}
