package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rolevate/interview-service/internal/livekit"
)

const (
	// SessionReady is the status returned to a candidate whose room is
	// provisioned and whose token is minted.
	SessionReady = "READY_TO_JOIN"

	roomMaxParticipants = 2
	roomEmptyTimeout    = 1800 // seconds
	minPhoneDigits      = 7
)

// SessionInput starts an ad-hoc interview for a candidate identified by
// phone number.
type SessionInput struct {
	JobPostID   string `json:"jobId"`
	PhoneNumber string `json:"phone"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
}

// Session is everything a client needs to join the candidate's room.
type Session struct {
	Token           string    `json:"token"`
	ServerURL       string    `json:"serverUrl"`
	RoomName        string    `json:"roomName"`
	RoomCode        string    `json:"roomCode"`
	ParticipantName string    `json:"participantName"`
	InterviewID     string    `json:"interviewId"`
	CandidateID     string    `json:"candidateId"`
	ApplicationID   string    `json:"applicationId"`
	JobPostID       string    `json:"jobPostId"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// CreateInterviewSession provisions a LiveKit room and an IN_PROGRESS
// interview for the candidate, creating the candidate and application
// on first contact, and returns a join token for the room.
func (s *Service) CreateInterviewSession(ctx context.Context, in SessionInput) (*Session, error) {
	in.JobPostID = strings.TrimSpace(in.JobPostID)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.JobPostID == "" {
		return nil, validationf("jobId is required")
	}
	if in.PhoneNumber == "" {
		return nil, validationf("phone is required")
	}
	if len(digitsOf(in.PhoneNumber)) < minPhoneDigits {
		return nil, validationf("phone must contain at least %d digits", minPhoneDigits)
	}

	job, err := s.store.GetJobPost(ctx, in.JobPostID)
	if err != nil {
		return nil, fmt.Errorf("job post %s: %w", in.JobPostID, err)
	}

	cand, err := s.store.UpsertCandidate(ctx, CandidateInput{
		PhoneNumber: in.PhoneNumber,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.TrimSpace(in.Email),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert candidate: %w", err)
	}

	app, err := s.store.EnsureApplication(ctx, job.ID, cand.ID, ApplicationSubmitted)
	if err != nil {
		return nil, fmt.Errorf("ensure application: %w", err)
	}

	started := s.now()
	iv := &Interview{
		ApplicationID:  app.ID,
		CandidateID:    cand.ID,
		JobPostID:      job.ID,
		CompanyID:      job.CompanyID,
		Title:          defaultTitle(TypeAIScreening, job.Title),
		Type:           TypeAIScreening,
		Status:         StatusInProgress,
		StartedAt:      &started,
		MaxDuration:    defaultMaxDuration,
		CandidatePhone: cand.PhoneNumber,
		CandidateName:  cand.Name,
	}
	// The row claims the room name before the room exists, so a room this
	// call provisions is never shared with another session.
	at, err := s.insertWithRoomName(ctx, iv, started)
	if err != nil {
		return nil, err
	}
	roomName, roomCode := iv.RoomName, iv.RoomCode

	meta, err := json.Marshal(livekit.RoomMetadata{
		Candidate: livekit.CandidateInfo{
			ID:        cand.ID,
			Name:      cand.Name,
			FirstName: cand.FirstName,
			LastName:  cand.LastName,
			Phone:     cand.PhoneNumber,
		},
		Job: livekit.JobInfo{
			ID:          job.ID,
			Title:       job.Title,
			Description: job.Description,
			Skills:      job.Skills,
		},
		Company: livekit.CompanyInfo{ID: job.CompanyID, Name: job.CompanyName},
		Interview: livekit.InterviewInfo{
			ApplicationID:      app.ID,
			RoomCode:           roomCode,
			Language:           job.InterviewLanguage,
			Prompt:             job.InterviewPrompt,
			TechnicalQuestions: job.TechnicalQuestions,
			MaxDuration:        defaultMaxDuration,
		},
	})
	if err != nil {
		s.dropReservation(ctx, iv)
		return nil, fmt.Errorf("encode room metadata: %w", err)
	}

	if _, err := s.rooms.CreateRoom(ctx, livekit.CreateRoomRequest{
		Name:            roomName,
		EmptyTimeout:    roomEmptyTimeout,
		MaxParticipants: roomMaxParticipants,
		Metadata:        string(meta),
	}); err != nil {
		s.dropReservation(ctx, iv)
		return nil, fmt.Errorf("create room %s: %w", roomName, err)
	}

	if err := s.store.SetApplicationStatus(ctx, app.ID, ApplicationInterviewScheduled,
		ApplicationSubmitted, ApplicationReviewing); err != nil {
		slog.Warn("advance application status failed", "applicationId", app.ID, "err", err)
	}

	participant := cand.Name
	if participant == "" {
		participant = cand.PhoneNumber
	}
	tokenMeta, _ := json.Marshal(map[string]string{
		"interviewId": iv.ID,
		"candidateId": cand.ID,
		"roomCode":    roomCode,
	})
	token, expiresAt, err := s.tokens.JoinToken(ParticipantIdentity(cand.PhoneNumber, at), participant, roomName, string(tokenMeta))
	if err != nil {
		return nil, fmt.Errorf("mint join token: %w", err)
	}

	s.publish(ctx, "", iv)
	slog.Info("interview session created", "interviewId", iv.ID, "roomName", roomName, "jobPostId", job.ID)

	return &Session{
		Token:           token,
		ServerURL:       s.liveKitURL,
		RoomName:        roomName,
		RoomCode:        roomCode,
		ParticipantName: participant,
		InterviewID:     iv.ID,
		CandidateID:     cand.ID,
		ApplicationID:   app.ID,
		JobPostID:       job.ID,
		Status:          SessionReady,
		ExpiresAt:       expiresAt,
	}, nil
}

// dropReservation deletes an interview row whose room was never provisioned.
func (s *Service) dropReservation(ctx context.Context, iv *Interview) {
	if err := s.store.DeleteInterview(context.WithoutCancel(ctx), iv.ID); err != nil {
		slog.Warn("delete unprovisioned interview failed", "interviewId", iv.ID, "roomName", iv.RoomName, "err", err)
	}
}

func defaultTitle(t Type, jobTitle string) string {
	label := strings.ReplaceAll(strings.ToLower(string(t)), "_", " ")
	if jobTitle == "" {
		return label + " interview"
	}
	return fmt.Sprintf("%s interview: %s", label, jobTitle)
}
