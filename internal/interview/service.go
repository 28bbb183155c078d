package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rolevate/interview-service/internal/events"
	"rolevate/interview-service/internal/livekit"
)

// AgentScope is the company scope used by the no-auth agent surfaces
// (agent HTTP routes, gRPC, MCP). It skips the company ownership check.
const AgentScope = ""

// RoomProvisioner creates and tears down LiveKit rooms.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context, req livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, name string) error
}

// TokenIssuer mints participant join tokens.
type TokenIssuer interface {
	JoinToken(identity, name, room, metadata string) (string, time.Time, error)
}

// RecordingStore persists uploaded interview recordings.
type RecordingStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config wires a Service. Recordings may be nil, which disables uploads.
type Config struct {
	Store      Store
	Rooms      RoomProvisioner
	Tokens     TokenIssuer
	Events     events.Publisher
	Recordings RecordingStore
	LiveKitURL string
	Now        func() time.Time
}

// Service holds the interview business logic. It has no dependency on
// net/http or gRPC; every transport calls into it.
type Service struct {
	store      Store
	rooms      RoomProvisioner
	tokens     TokenIssuer
	events     events.Publisher
	recordings RecordingStore
	liveKitURL string
	now        func() time.Time
}

// NewService returns a configured Service.
func NewService(cfg Config) *Service {
	s := &Service{
		store:      cfg.Store,
		rooms:      cfg.Rooms,
		tokens:     cfg.Tokens,
		events:     cfg.Events,
		recordings: cfg.Recordings,
		liveKitURL: cfg.LiveKitURL,
		now:        cfg.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// owned loads an interview and checks it belongs to companyID.
func (s *Service) owned(ctx context.Context, companyID, id string) (*Interview, error) {
	if id == "" {
		return nil, validationf("interview id is required")
	}
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if companyID != AgentScope && iv.CompanyID != companyID {
		return nil, ErrForbidden
	}
	return iv, nil
}

// insertWithRoomName stores iv under the candidate's room name for at. The
// unique room name is the reservation: on ErrConflict it moves forward one
// millisecond and tries again. It returns the instant the stored name
// encodes.
func (s *Service) insertWithRoomName(ctx context.Context, iv *Interview, at time.Time) (time.Time, error) {
	for attempt := 0; attempt < roomNameAttempts; attempt++ {
		iv.RoomName = RoomName(iv.CandidateID, at)
		iv.RoomCode = RoomCode(iv.CandidatePhone, at)
		err := s.store.CreateInterview(ctx, iv)
		if err == nil {
			return at, nil
		}
		if !errors.Is(err, ErrConflict) {
			return at, fmt.Errorf("create interview: %w", err)
		}
		at = at.Add(time.Millisecond)
	}
	return at, fmt.Errorf("allocate room name for candidate %s: %w", iv.CandidateID, ErrConflict)
}

const roomNameAttempts = 3

// publish emits a status event. Failures are logged, never returned.
func (s *Service) publish(ctx context.Context, from Status, iv *Interview) {
	ev := events.StatusChanged{
		InterviewID: iv.ID,
		RoomName:    iv.RoomName,
		CompanyID:   iv.CompanyID,
		From:        string(from),
		To:          string(iv.Status),
		At:          s.now(),
	}
	if err := s.events.PublishStatus(ctx, ev); err != nil {
		slog.Warn("publish interview status failed", "interviewId", iv.ID, "status", iv.Status, "err", err)
	}
}

func validateRating(r *int) error {
	if r != nil && (*r < 1 || *r > 5) {
		return validationf("rating must be between 1 and 5")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
