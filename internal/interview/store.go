package interview

import (
	"context"
	"time"
)

// Store persists the interview domain. PostgresStore is the production
// implementation; MemoryStore backs local runs and tests.
//
// Lookups return ErrNotFound for missing rows. CreateInterview returns
// ErrConflict when the room name is already taken.
type Store interface {
	GetJobPost(ctx context.Context, id string) (*JobPost, error)

	// UpsertCandidate creates the candidate for in.PhoneNumber or fills in
	// non-empty name/email fields on the existing row, atomically.
	UpsertCandidate(ctx context.Context, in CandidateInput) (*Candidate, error)
	GetCandidate(ctx context.Context, id string) (*Candidate, error)

	// EnsureApplication returns the application for the (job post,
	// candidate) pair, creating it with status when absent.
	EnsureApplication(ctx context.Context, jobPostID, candidateID string, status ApplicationStatus) (*Application, error)
	GetApplication(ctx context.Context, id string) (*Application, error)
	// SetApplicationStatus moves an application to `to`. When from is
	// non-empty the write only happens if the current status is one of them.
	SetApplicationStatus(ctx context.Context, id string, to ApplicationStatus, from ...ApplicationStatus) error

	CreateInterview(ctx context.Context, iv *Interview) error
	GetInterview(ctx context.Context, id string) (*Interview, error)
	GetInterviewByRoom(ctx context.Context, roomName string) (*Interview, error)
	ListInterviews(ctx context.Context, f ListFilter) ([]Interview, int, error)
	UpdateInterview(ctx context.Context, id string, p Patch) (*Interview, error)
	// TransitionInterview writes `to` and p only if the row is still in
	// `from`. It returns (nil, nil) when the row exists but lost the race.
	TransitionInterview(ctx context.Context, id string, from, to Status, p Patch) (*Interview, error)
	DeleteInterview(ctx context.Context, id string) error
	ListOverdueInterviews(ctx context.Context, now time.Time) ([]Interview, error)

	// InsertTranscripts stores all rows or none.
	InsertTranscripts(ctx context.Context, rows []Transcript) ([]Transcript, error)
	ListTranscripts(ctx context.Context, interviewID string) ([]Transcript, error)
	MaxTranscriptSequence(ctx context.Context, interviewID string) (int, error)
}
