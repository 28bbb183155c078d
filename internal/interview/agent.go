package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"rolevate/interview-service/internal/recording"
)

// Operations used by the AI interviewer agent. They address interviews by
// LiveKit room name and run under AgentScope.

// GetInterviewByRoomID returns the interview held in roomName with a fresh
// link to its uploaded recording.
func (s *Service) GetInterviewByRoomID(ctx context.Context, roomName string) (*Interview, error) {
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return s.withRecordingLink(ctx, iv), nil
}

func (s *Service) byRoom(ctx context.Context, roomName string) (*Interview, error) {
	if strings.TrimSpace(roomName) == "" {
		return nil, validationf("roomName is required")
	}
	iv, err := s.store.GetInterviewByRoom(ctx, roomName)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomName, err)
	}
	return iv, nil
}

// StartRoom starts the room's interview. Ad-hoc sessions are created
// IN_PROGRESS, so starting one of those returns it unchanged.
func (s *Service) StartRoom(ctx context.Context, roomName string) (*Interview, error) {
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if iv.Status == StatusInProgress {
		return iv, nil
	}
	return s.StartInterview(ctx, AgentScope, iv.ID)
}

// EndRoom completes the room's interview with an optional summary.
func (s *Service) EndRoom(ctx context.Context, roomName string, summary *string) (*Interview, error) {
	return s.CompleteRoom(ctx, roomName, CompleteInput{Summary: summary})
}

// CompleteRoom completes the room's interview with the agent's outcome.
func (s *Service) CompleteRoom(ctx context.Context, roomName string, in CompleteInput) (*Interview, error) {
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return s.CompleteInterview(ctx, AgentScope, iv.ID, in)
}

// EndSession completes the interview if it is still running and deletes
// the LiveKit room.
func (s *Service) EndSession(ctx context.Context, roomName string, in CompleteInput) (*Interview, error) {
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if iv.Status == StatusInProgress {
		done, err := s.CompleteInterview(ctx, AgentScope, iv.ID, in)
		var terr *TransitionError
		switch {
		case err == nil:
			iv = done
		case errors.As(err, &terr):
			// closed concurrently; the room still has to go
			if iv, err = s.store.GetInterview(ctx, iv.ID); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	if err := s.rooms.DeleteRoom(ctx, roomName); err != nil {
		slog.Warn("delete room failed", "roomName", roomName, "err", err)
	}
	return iv, nil
}

// AddRoomTranscripts appends transcripts to the room's interview.
func (s *Service) AddRoomTranscripts(ctx context.Context, roomName string, in []TranscriptInput) ([]Transcript, error) {
	if len(in) == 0 {
		return nil, validationf("at least one transcript is required")
	}
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return s.addTranscripts(ctx, iv, in)
}

// RecordingInput is either an uploaded file (Body) or a URL where the
// recording already lives.
type RecordingInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	URL         string
}

// SaveRecording stores the room's recording and links it to the interview.
func (s *Service) SaveRecording(ctx context.Context, roomName string, in RecordingInput) (*Interview, error) {
	iv, err := s.byRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}

	var p Patch
	switch {
	case in.Body != nil:
		if s.recordings == nil {
			return nil, validationf("recording storage is not configured")
		}
		key := recording.Key(iv.ID, in.Filename, s.now())
		contentType := in.ContentType
		if contentType == "" {
			contentType = "video/webm"
		}
		size := in.Size
		if size <= 0 {
			size = -1
		}
		if err := s.recordings.Put(ctx, key, in.Body, size, contentType); err != nil {
			return nil, fmt.Errorf("store recording: %w", err)
		}
		p.RecordingKey, p.RecordingURL = &key, ptr("")
	case in.URL != "":
		u, err := url.ParseRequestURI(in.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationf("videoUrl must be an absolute http(s) URL")
		}
		p.RecordingKey, p.RecordingURL = ptr(""), ptr(u.String())
	default:
		return nil, validationf("a video file or videoUrl is required")
	}

	updated, err := s.store.UpdateInterview(ctx, iv.ID, p)
	if err != nil {
		return nil, fmt.Errorf("link recording to %s: %w", iv.ID, err)
	}
	return s.withRecordingLink(ctx, updated), nil
}

// recordingLinkTTL bounds the download links handed out on read.
const recordingLinkTTL = time.Hour

// withRecordingLink fills RecordingURL with a presigned link when the
// recording was uploaded to storage. Only the key is persisted.
func (s *Service) withRecordingLink(ctx context.Context, iv *Interview) *Interview {
	if iv.RecordingKey == nil || s.recordings == nil {
		return iv
	}
	link, err := s.recordings.PresignGet(ctx, *iv.RecordingKey, recordingLinkTTL)
	if err != nil {
		slog.Warn("presign recording failed", "interviewId", iv.ID, "key", *iv.RecordingKey, "err", err)
		return iv
	}
	out := *iv
	out.RecordingURL = &link
	return &out
}

// SaveInterviewInput is the agent backend's composite save: find the
// interview by room (or create one), then patch it and append transcripts.
type SaveInterviewInput struct {
	RoomName    string            `json:"roomName"`
	JobPostID   string            `json:"jobId"`
	CandidateID string            `json:"candidateId"`
	PhoneNumber string            `json:"phone"`
	FirstName   string            `json:"firstName"`
	LastName    string            `json:"lastName"`
	Transcripts []TranscriptInput `json:"transcripts"`
	UpdateInput
}

// SaveResult is returned by the composite agent operations.
type SaveResult struct {
	Interview   *Interview   `json:"interview"`
	Transcripts []Transcript `json:"transcripts"`
}

// SaveInterview appends to the interview held in in.RoomName, or creates
// one when no room is named. A named room that does not exist is
// ErrNotFound. A new interview with a phone number is an ad-hoc session;
// otherwise it is scheduled for the given job post and candidate.
func (s *Service) SaveInterview(ctx context.Context, in SaveInterviewInput) (*SaveResult, error) {
	if err := in.UpdateInput.validate(); err != nil {
		return nil, err
	}

	var iv *Interview
	if in.RoomName != "" {
		found, err := s.byRoom(ctx, in.RoomName)
		if err != nil {
			return nil, err
		}
		iv = found
	}

	if iv == nil {
		var err error
		switch {
		case in.PhoneNumber != "":
			var sess *Session
			sess, err = s.CreateInterviewSession(ctx, SessionInput{
				JobPostID:   in.JobPostID,
				PhoneNumber: in.PhoneNumber,
				FirstName:   in.FirstName,
				LastName:    in.LastName,
			})
			if err == nil {
				iv, err = s.store.GetInterview(ctx, sess.InterviewID)
			}
		default:
			scheduledAt := s.now()
			if in.ScheduledAt != nil {
				scheduledAt = *in.ScheduledAt
			}
			si := ScheduleInput{JobPostID: in.JobPostID, CandidateID: in.CandidateID, ScheduledAt: &scheduledAt}
			if in.Title != nil {
				si.Title = *in.Title
			}
			if in.Type != nil {
				si.Type = *in.Type
			}
			iv, err = s.ScheduleInterview(ctx, AgentScope, si)
		}
		if err != nil {
			return nil, err
		}
	}
	return s.applyComposite(ctx, iv, in.UpdateInput, in.Transcripts)
}

// CompositeUpdate patches an interview, appends transcripts and applies an
// optional status change in one call.
type CompositeUpdate struct {
	UpdateInput
	Transcripts []TranscriptInput `json:"transcripts"`
}

// UpdateInterviewComposite applies in to the interview with the given id.
func (s *Service) UpdateInterviewComposite(ctx context.Context, id string, in CompositeUpdate) (*SaveResult, error) {
	if err := in.UpdateInput.validate(); err != nil {
		return nil, err
	}
	iv, err := s.owned(ctx, AgentScope, id)
	if err != nil {
		return nil, err
	}
	return s.applyComposite(ctx, iv, in.UpdateInput, in.Transcripts)
}

// applyComposite appends transcripts before the patch so a completion
// event is only published once the transcripts are stored.
func (s *Service) applyComposite(ctx context.Context, iv *Interview, upd UpdateInput, transcripts []TranscriptInput) (*SaveResult, error) {
	res := &SaveResult{Interview: iv, Transcripts: []Transcript{}}
	if len(transcripts) > 0 {
		stored, err := s.addTranscripts(ctx, iv, transcripts)
		if err != nil {
			return nil, err
		}
		res.Transcripts = stored
	}
	// The agent reports finished interviews as COMPLETED even when they
	// were never started; walk them through IN_PROGRESS.
	if upd.Status != nil && Status(*upd.Status) == StatusCompleted && iv.Status == StatusScheduled {
		if _, err := s.StartInterview(ctx, AgentScope, iv.ID); err != nil {
			return nil, err
		}
	}
	updated, err := s.Update(ctx, AgentScope, iv.ID, upd)
	if err != nil {
		return nil, err
	}
	res.Interview = updated
	return res, nil
}

func (in UpdateInput) validate() error {
	if _, err := in.patch(); err != nil {
		return err
	}
	if in.Status != nil {
		if _, err := ParseStatus(*in.Status); err != nil {
			return &ValidationError{Msg: err.Error()}
		}
	}
	return nil
}
