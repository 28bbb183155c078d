// Package grpcserver implements the AgentService gRPC server.
//
// It delegates all business logic to interview.Service and handles only
// the gRPC transport concerns: metadata extraction, error mapping, and
// conversion between domain types and google.protobuf.Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"rolevate/interview-service/internal/interview"
	"rolevate/interview-service/internal/util"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "rolevate.interview.v1.AgentService"

// Agent is the subset of interview.Service exposed over gRPC.
type Agent interface {
	GetInterviewByRoomID(ctx context.Context, roomName string) (*interview.Interview, error)
	StartRoom(ctx context.Context, roomName string) (*interview.Interview, error)
	EndSession(ctx context.Context, roomName string, in interview.CompleteInput) (*interview.Interview, error)
	AddRoomTranscripts(ctx context.Context, roomName string, in []interview.TranscriptInput) ([]interview.Transcript, error)
}

// AgentServiceServer is the server API for AgentService.
type AgentServiceServer interface {
	GetRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddTranscripts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements AgentServiceServer.
type Server struct {
	svc Agent
}

// NewServer constructs a gRPC Server backed by svc.
func NewServer(svc Agent) *Server {
	return &Server{svc: svc}
}

// Register adds the AgentService to r.
func Register(r grpc.ServiceRegistrar, s AgentServiceServer) {
	r.RegisterService(&ServiceDesc, s)
}

// ─── RPC implementations ──────────────────────────────────────────────────────

type roomRequest struct {
	RoomName string `json:"roomName"`
	interview.CompleteInput
}

type transcriptsRequest struct {
	RoomName    string                      `json:"roomName"`
	Transcripts []interview.TranscriptInput `json:"transcripts"`
}

// GetRoom returns the interview held in a room.
func (s *Server) GetRoom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in roomRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	iv, err := s.svc.GetInterviewByRoomID(ctx, in.RoomName)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(iv)
}

// StartRoom starts the room's interview.
func (s *Server) StartRoom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in roomRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	iv, err := s.svc.StartRoom(ctx, in.RoomName)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(iv)
}

// EndRoom completes the room's interview if it is still running and closes
// the LiveKit room. Ending an already ended room returns it unchanged.
func (s *Server) EndRoom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in roomRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	iv, err := s.svc.EndSession(ctx, in.RoomName, in.CompleteInput)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(iv)
}

// AddTranscripts appends transcripts to the room's interview.
func (s *Server) AddTranscripts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in transcriptsRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	rows, err := s.svc.AddRoomTranscripts(ctx, in.RoomName, in.Transcripts)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(map[string]any{"transcripts": rows})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	var (
		ve *interview.ValidationError
		te *interview.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.As(err, &te):
		return status.Error(codes.FailedPrecondition, te.Error())
	case errors.Is(err, interview.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, interview.ErrForbidden):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, interview.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	}
	slog.Error("grpc request failed", "err", err)
	return status.Error(codes.Internal, "internal server error")
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// requestIDFromCtx returns the x-request-id forwarded in metadata, or a new
// one.
func requestIDFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-request-id"); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.NewString()
}

// LogInterceptor logs one structured line per unary call, tagged with the
// caller's request id.
func LogInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	logger := util.LoggerFromContext(ctx).With("request_id", requestIDFromCtx(ctx))
	ctx = util.ContextWithLogger(ctx, logger)

	resp, err := handler(ctx, req)
	code := status.Code(err)
	level := slog.LevelInfo
	if code == codes.Internal || code == codes.Unknown {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "grpc_request",
		"method", info.FullMethod,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}

// ─── Service descriptor ──────────────────────────────────────────────────────

// ServiceDesc describes AgentService. Every method takes and returns a
// google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetRoom", AgentServiceServer.GetRoom),
		unary("StartRoom", AgentServiceServer.StartRoom),
		unary("EndRoom", AgentServiceServer.EndRoom),
		unary("AddTranscripts", AgentServiceServer.AddTranscripts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rolevate/interview/v1/agent.proto",
}

type structMethod func(AgentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call structMethod) grpc.MethodDesc {
	fullMethod := fmt.Sprintf("/%s/%s", ServiceName, name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(AgentServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(*structpb.Struct))
			})
		},
	}
}
