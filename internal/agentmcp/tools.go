// Package agentmcp exposes the AI interviewer's room operations as MCP
// tools.
package agentmcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rolevate/interview-service/internal/interview"
)

// Agent is the subset of interview.Service the tools call.
type Agent interface {
	GetInterviewByRoomID(ctx context.Context, roomName string) (*interview.Interview, error)
	AddRoomTranscripts(ctx context.Context, roomName string, in []interview.TranscriptInput) ([]interview.Transcript, error)
	EndSession(ctx context.Context, roomName string, in interview.CompleteInput) (*interview.Interview, error)
}

// NewServer returns an MCP server carrying every tool.
func NewServer(agent Agent, version string) *server.MCPServer {
	s := server.NewMCPServer("rolevate-interview", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(Tools(agent)...)
	return s
}

// Tools returns the interview tools bound to agent.
func Tools(agent Agent) []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("get_interview_by_room",
				mcp.WithDescription("Look up the interview held in a LiveKit room, including job, candidate and status."),
				mcp.WithString("roomName", mcp.Required(), mcp.Description("LiveKit room name")),
			),
			Handler: getInterview(agent),
		},
		{
			Tool: mcp.NewTool("add_transcript",
				mcp.WithDescription("Append one utterance to the room's interview transcript."),
				mcp.WithString("roomName", mcp.Required(), mcp.Description("LiveKit room name")),
				mcp.WithString("speakerType", mcp.Required(),
					mcp.Enum("AI_ASSISTANT", "CANDIDATE", "INTERVIEWER", "SYSTEM")),
				mcp.WithString("content", mcp.Required(), mcp.Description("What was said")),
				mcp.WithString("speakerName"),
				mcp.WithNumber("startTime", mcp.Description("Seconds from interview start")),
				mcp.WithNumber("endTime", mcp.Description("Seconds from interview start")),
			),
			Handler: addTranscript(agent),
		},
		{
			Tool: mcp.NewTool("end_interview",
				mcp.WithDescription("Complete the room's interview and close the room."),
				mcp.WithString("roomName", mcp.Required(), mcp.Description("LiveKit room name")),
				mcp.WithString("summary", mcp.Description("Short assessment of the candidate")),
				mcp.WithNumber("rating", mcp.Description("Overall rating, 1 to 5")),
			),
			Handler: endInterview(agent),
		},
	}
}

func getInterview(agent Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		room, err := req.RequireString("roomName")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		iv, err := agent.GetInterviewByRoomID(ctx, room)
		return result(iv, err)
	}
}

func addTranscript(agent Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		room, err := req.RequireString("roomName")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		speaker, err := req.RequireString("speakerType")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start := req.GetFloat("startTime", 0)
		rows, err := agent.AddRoomTranscripts(ctx, room, []interview.TranscriptInput{{
			SpeakerType: strings.ToUpper(speaker),
			SpeakerName: req.GetString("speakerName", ""),
			Content:     content,
			StartTime:   start,
			EndTime:     req.GetFloat("endTime", start),
		}})
		return result(rows, err)
	}
}

func endInterview(agent Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		room, err := req.RequireString("roomName")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var in interview.CompleteInput
		if s := req.GetString("summary", ""); s != "" {
			in.Summary = &s
		}
		if r := req.GetInt("rating", 0); r != 0 {
			in.Rating = &r
		}
		iv, err := agent.EndSession(ctx, room, in)
		return result(iv, err)
	}
}

// result renders v as JSON text. Domain errors become tool errors the model
// can read; anything else fails the call.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		var (
			ve *interview.ValidationError
			te *interview.TransitionError
		)
		if errors.As(err, &ve) || errors.As(err, &te) || errors.Is(err, interview.ErrNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
