// interview-mcp serves the AI interviewer's room tools over MCP stdio.
//
// Tool calls are forwarded to a running interview-service through its
// AgentService gRPC API (INTERVIEW_GRPC_ADDR, default localhost:9093).
// Stdout carries the protocol, so all logging goes to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"rolevate/interview-service/internal/agentmcp"
	"rolevate/interview-service/internal/grpcserver"
	"rolevate/interview-service/internal/interview"
	"rolevate/interview-service/internal/util"
)

const version = "1.0.0"

// remoteAgent adapts the gRPC client to agentmcp.Agent.
type remoteAgent struct {
	c *grpcserver.Client
}

func (a remoteAgent) GetInterviewByRoomID(ctx context.Context, roomName string) (*interview.Interview, error) {
	return a.c.GetRoom(ctx, roomName)
}

func (a remoteAgent) AddRoomTranscripts(ctx context.Context, roomName string, in []interview.TranscriptInput) ([]interview.Transcript, error) {
	return a.c.AddTranscripts(ctx, roomName, in)
}

func (a remoteAgent) EndSession(ctx context.Context, roomName string, in interview.CompleteInput) (*interview.Interview, error) {
	return a.c.EndRoom(ctx, roomName, in)
}

func main() {
	log.SetOutput(os.Stderr)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[interview-mcp] .env: %v", err)
	}

	defaultAddr := os.Getenv("INTERVIEW_GRPC_ADDR")
	if defaultAddr == "" {
		defaultAddr = "localhost:9093"
	}
	addr := flag.String("addr", defaultAddr, "interview-service gRPC address")
	flag.Parse()
	util.InitStderrLogger(os.Getenv("LOG_LEVEL"))

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("[interview-mcp] gRPC client: %v", err)
	}
	defer conn.Close()

	s := agentmcp.NewServer(remoteAgent{c: grpcserver.NewClient(conn)}, version)
	slog.Info("serving MCP over stdio", "grpcAddr", *addr)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("[interview-mcp] %v", err)
	}
}
