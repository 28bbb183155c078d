package livekit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	lk "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
)

// callTimeout bounds each RoomService request.
const callTimeout = 10 * time.Second

// CreateRoomRequest is the subset of the SDK's create request the service
// sets.
type CreateRoomRequest struct {
	Name            string
	EmptyTimeout    uint32
	MaxParticipants uint32
	Metadata        string
}

// Room is the subset of a LiveKit room the service reads back.
type Room struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	EmptyTimeout    uint32 `json:"emptyTimeout"`
	MaxParticipants uint32 `json:"maxParticipants"`
	Metadata        string `json:"metadata"`
}

// RoomClient calls the LiveKit RoomService through the server SDK.
type RoomClient struct {
	rooms *lksdk.RoomServiceClient
}

// NewRoomClient builds a client for serverURL (ws://, wss://, http:// or
// https://) authenticated with the signer's key pair.
func NewRoomClient(serverURL string, signer *TokenSigner) (*RoomClient, error) {
	host, err := HTTPHost(serverURL)
	if err != nil {
		return nil, err
	}
	return &RoomClient{
		rooms: lksdk.NewRoomServiceClient(host, signer.apiKey, signer.apiSecret),
	}, nil
}

// HTTPHost converts a LiveKit websocket URL to its HTTP API base.
func HTTPHost(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("parse livekit url: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported livekit url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("livekit url has no host")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// CreateRoom creates (or returns the existing) room.
func (c *RoomClient) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	room, err := c.rooms.CreateRoom(ctx, &lk.CreateRoomRequest{
		Name:            req.Name,
		EmptyTimeout:    req.EmptyTimeout,
		MaxParticipants: req.MaxParticipants,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("livekit CreateRoom: %w", err)
	}
	return &Room{
		SID:             room.GetSid(),
		Name:            room.GetName(),
		EmptyTimeout:    room.GetEmptyTimeout(),
		MaxParticipants: room.GetMaxParticipants(),
		Metadata:        room.GetMetadata(),
	}, nil
}

// DeleteRoom closes a room and disconnects its participants. A room that
// no longer exists is not an error.
func (c *RoomClient) DeleteRoom(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	_, err := c.rooms.DeleteRoom(ctx, &lk.DeleteRoomRequest{Room: name})
	if err == nil || IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("livekit DeleteRoom: %w", err)
}

// IsNotFound reports whether err is a RoomService not_found error.
func IsNotFound(err error) bool {
	var te twirp.Error
	return errors.As(err, &te) && te.Code() == twirp.NotFound
}
