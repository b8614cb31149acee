package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets the gRPC server exchange ChatRequest/ChatResponse as JSON
// instead of protobuf, so the wire schema in messages.go stays the single
// source of truth without a protoc step.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ChatServer is the bidirectional streaming endpoint.
type ChatServer interface {
	Chat(Translate_ChatServer) error
}

type UnimplementedTranslateServer struct{}

func (UnimplementedTranslateServer) Chat(Translate_ChatServer) error {
	return status.Errorf(codes.Unimplemented, "method Chat not implemented")
}

// Translate_ChatServer is the per-stream handle passed to ChatServer.Chat.
type Translate_ChatServer interface {
	Send(*ChatResponse) error
	Recv() (*ChatRequest, error)
	grpc.ServerStream
}

type chatStreamServer struct {
	grpc.ServerStream
}

func (x *chatStreamServer) Send(m *ChatResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *chatStreamServer) Recv() (*ChatRequest, error) {
	m := new(ChatRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Translate_Chat_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ChatServer).Chat(&chatStreamServer{stream})
}

var translateServiceDesc = grpc.ServiceDesc{
	ServiceName: "speechrelay.Translate",
	HandlerType: (*ChatServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Chat",
			Handler:       _Translate_Chat_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpdateParticipantSettings",
			Handler:    _Translate_UpdateParticipantSettings_Handler,
		},
	},
	Metadata: "internal/rpc/translate.proto",
}

func _Translate_UpdateParticipantSettings_Handler(srv interface{}, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateParticipantSettingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	settingsSrv := srv.(SettingsServer)
	if interceptor == nil {
		return settingsSrv.UpdateParticipantSettings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/speechrelay.Translate/UpdateParticipantSettings",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return settingsSrv.UpdateParticipantSettings(ctx, req.(*UpdateParticipantSettingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SettingsServer is the unary participant-settings mutation endpoint.
type SettingsServer interface {
	UpdateParticipantSettings(context.Context, *UpdateParticipantSettingsRequest) (*ParticipantSettingsResponse, error)
}

// RegisterTranslateServer registers both the streaming and unary methods
// under a single gRPC service.
func RegisterTranslateServer(s *grpc.Server, srv interface {
	ChatServer
	SettingsServer
}) {
	s.RegisterService(&translateServiceDesc, srv)
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := removeIfExists(socketPath); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		pipePath := strings.TrimPrefix(addr, "npipe:")
		return listenPipe(pipePath)
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return errors.New("empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
