package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"rolevate/interview-service/internal/interview"
)

// Client calls AgentService over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetRoom returns the interview held in roomName.
func (c *Client) GetRoom(ctx context.Context, roomName string) (*interview.Interview, error) {
	var iv interview.Interview
	err := c.call(ctx, "GetRoom", roomRequest{RoomName: roomName}, &iv)
	return &iv, err
}

// StartRoom starts the interview held in roomName.
func (c *Client) StartRoom(ctx context.Context, roomName string) (*interview.Interview, error) {
	var iv interview.Interview
	err := c.call(ctx, "StartRoom", roomRequest{RoomName: roomName}, &iv)
	return &iv, err
}

// EndRoom completes the interview held in roomName and closes the room.
func (c *Client) EndRoom(ctx context.Context, roomName string, in interview.CompleteInput) (*interview.Interview, error) {
	var iv interview.Interview
	err := c.call(ctx, "EndRoom", roomRequest{RoomName: roomName, CompleteInput: in}, &iv)
	return &iv, err
}

// AddTranscripts appends transcripts to the interview held in roomName.
func (c *Client) AddTranscripts(ctx context.Context, roomName string, in []interview.TranscriptInput) ([]interview.Transcript, error) {
	var out struct {
		Transcripts []interview.Transcript `json:"transcripts"`
	}
	err := c.call(ctx, "AddTranscripts", transcriptsRequest{RoomName: roomName, Transcripts: in}, &out)
	return out.Transcripts, err
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(b, in); err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	b, err = protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return json.Unmarshal(b, resp)
}
