package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ScheduleInput creates a SCHEDULED interview. Either ApplicationID or
// both JobPostID and CandidateID identify the application.
type ScheduleInput struct {
	ApplicationID string     `json:"applicationId"`
	JobPostID     string     `json:"jobPostId"`
	CandidateID   string     `json:"candidateId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	ScheduledAt   *time.Time `json:"scheduledAt"`
	MaxDuration   int        `json:"maxDuration"`
}

// ScheduleInterview creates a SCHEDULED interview for an application of
// one of companyID's job posts.
func (s *Service) ScheduleInterview(ctx context.Context, companyID string, in ScheduleInput) (*Interview, error) {
	typ := TypeAIScreening
	if in.Type != "" {
		t, err := ParseType(in.Type)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		typ = t
	}
	if in.ScheduledAt == nil {
		return nil, validationf("scheduledAt is required")
	}
	if in.MaxDuration < 0 {
		return nil, validationf("maxDuration must be positive")
	}
	if in.MaxDuration == 0 {
		in.MaxDuration = defaultMaxDuration
	}

	jobPostID, candidateID := in.JobPostID, in.CandidateID
	var app *Application
	if in.ApplicationID != "" {
		a, err := s.store.GetApplication(ctx, in.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", in.ApplicationID, err)
		}
		app, jobPostID, candidateID = a, a.JobPostID, a.CandidateID
	} else if jobPostID == "" || candidateID == "" {
		return nil, validationf("applicationId or both jobPostId and candidateId are required")
	}

	job, err := s.store.GetJobPost(ctx, jobPostID)
	if err != nil {
		return nil, fmt.Errorf("job post %s: %w", jobPostID, err)
	}
	if companyID != AgentScope && job.CompanyID != companyID {
		return nil, ErrForbidden
	}
	cand, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, err)
	}
	if app == nil {
		if app, err = s.store.EnsureApplication(ctx, job.ID, cand.ID, ApplicationSubmitted); err != nil {
			return nil, fmt.Errorf("ensure application: %w", err)
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle(typ, job.Title)
	}
	scheduledAt := in.ScheduledAt.UTC()
	iv := &Interview{
		ApplicationID:  app.ID,
		CandidateID:    cand.ID,
		JobPostID:      job.ID,
		CompanyID:      job.CompanyID,
		Title:          title,
		Description:    in.Description,
		Type:           typ,
		Status:         StatusScheduled,
		ScheduledAt:    &scheduledAt,
		MaxDuration:    in.MaxDuration,
		CandidatePhone: cand.PhoneNumber,
		CandidateName:  cand.Name,
	}
	if _, err := s.insertWithRoomName(ctx, iv, s.now()); err != nil {
		return nil, err
	}

	if err := s.store.SetApplicationStatus(ctx, app.ID, ApplicationInterviewScheduled,
		ApplicationSubmitted, ApplicationReviewing); err != nil {
		slog.Warn("advance application status failed", "applicationId", app.ID, "err", err)
	}
	s.publish(ctx, "", iv)
	return iv, nil
}

// FindAll lists companyID's interviews matching f.
func (s *Service) FindAll(ctx context.Context, companyID string, f ListFilter) (*Page, error) {
	if companyID != AgentScope {
		f.CompanyID = companyID
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	rows, total, err := s.store.ListInterviews(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return newPage(rows, total, f), nil
}

// FindOne returns one interview owned by companyID.
func (s *Service) FindOne(ctx context.Context, companyID, id string) (*Interview, error) {
	iv, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return s.withRecordingLink(ctx, iv), nil
}

// GetInterviewsByCandidate lists the newest interviews of a candidate.
func (s *Service) GetInterviewsByCandidate(ctx context.Context, companyID, candidateID string) ([]Interview, error) {
	if candidateID == "" {
		return nil, validationf("candidateId is required")
	}
	return s.listAll(ctx, companyID, ListFilter{CandidateID: candidateID})
}

// GetInterviewsByApplication lists the newest interviews of an application.
func (s *Service) GetInterviewsByApplication(ctx context.Context, companyID, applicationID string) ([]Interview, error) {
	if applicationID == "" {
		return nil, validationf("applicationId is required")
	}
	return s.listAll(ctx, companyID, ListFilter{ApplicationID: applicationID})
}

// GetInterviewsByJob lists the newest interviews held for a job post.
func (s *Service) GetInterviewsByJob(ctx context.Context, companyID, jobPostID string) ([]Interview, error) {
	if jobPostID == "" {
		return nil, validationf("jobId is required")
	}
	return s.listAll(ctx, companyID, ListFilter{JobPostID: jobPostID})
}

func (s *Service) listAll(ctx context.Context, companyID string, f ListFilter) ([]Interview, error) {
	f.Limit = maxPageLimit
	page, err := s.FindAll(ctx, companyID, f)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// UpdateInput is a partial interview update. Status is not written
// directly: it is mapped to the lifecycle action reaching it.
type UpdateInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Type        *string    `json:"type"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	MaxDuration *int       `json:"maxDuration"`
	Summary     *string    `json:"summary"`
	Feedback    *string    `json:"feedback"`
	Rating      *int       `json:"rating"`
	Analysis    Analyses   `json:"analysis"`
	Status      *string    `json:"status"`
}

func (in UpdateInput) patch() (Patch, error) {
	p := Patch{
		Title:       in.Title,
		Description: in.Description,
		ScheduledAt: in.ScheduledAt,
		MaxDuration: in.MaxDuration,
		Summary:     in.Summary,
		Feedback:    in.Feedback,
		Rating:      in.Rating,
		Analysis:    in.Analysis,
	}
	if in.Type != nil {
		t, err := ParseType(*in.Type)
		if err != nil {
			return p, &ValidationError{Msg: err.Error()}
		}
		p.Type = &t
	}
	if in.MaxDuration != nil && *in.MaxDuration <= 0 {
		return p, validationf("maxDuration must be positive")
	}
	if err := validateRating(in.Rating); err != nil {
		return p, err
	}
	return p, nil
}

func (p Patch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.ScheduledAt == nil && p.StartedAt == nil && p.CompletedAt == nil &&
		p.Duration == nil && p.MaxDuration == nil && p.Summary == nil &&
		p.Feedback == nil && p.Rating == nil && p.Analysis == nil &&
		p.RecordingKey == nil && p.RecordingURL == nil
}

// Update applies in to an interview owned by companyID. A requested
// status goes through the transition table together with the other
// fields, so a rejected transition writes nothing.
func (s *Service) Update(ctx context.Context, companyID, id string, in UpdateInput) (*Interview, error) {
	p, err := in.patch()
	if err != nil {
		return nil, err
	}
	var target Status
	if in.Status != nil {
		if target, err = ParseStatus(*in.Status); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}

	iv, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if target != "" && target != iv.Status {
		action, ok := ActionFor(target)
		if !ok {
			return nil, validationf("status cannot be set to %s", target)
		}
		if action == ActionCancel && p.Summary == nil {
			p.Summary = ptr(cancelSummary(""))
		}
		return s.transition(ctx, companyID, id, action, p)
	}
	if p.empty() {
		return iv, nil
	}
	updated, err := s.store.UpdateInterview(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("update interview %s: %w", id, err)
	}
	return updated, nil
}

// Remove deletes an interview and its transcripts.
func (s *Service) Remove(ctx context.Context, companyID, id string) error {
	if _, err := s.owned(ctx, companyID, id); err != nil {
		return err
	}
	if err := s.store.DeleteInterview(ctx, id); err != nil {
		return fmt.Errorf("delete interview %s: %w", id, err)
	}
	return nil
}
