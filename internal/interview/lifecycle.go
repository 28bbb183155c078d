package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ExpiredSummary is stored on interviews closed by ExpireOverdue.
const ExpiredSummary = "Auto-completed: exceeded max duration"

const transitionAttempts = 3

// CompleteInput carries the optional outcome recorded on completion.
type CompleteInput struct {
	Summary  *string  `json:"summary"`
	Feedback *string  `json:"feedback"`
	Rating   *int     `json:"rating"`
	Analysis Analyses `json:"analysis"`
}

func (in CompleteInput) patch() (Patch, error) {
	if err := validateRating(in.Rating); err != nil {
		return Patch{}, err
	}
	return Patch{Summary: in.Summary, Feedback: in.Feedback, Rating: in.Rating, Analysis: in.Analysis}, nil
}

// StartInterview moves a SCHEDULED interview to IN_PROGRESS.
func (s *Service) StartInterview(ctx context.Context, companyID, id string) (*Interview, error) {
	return s.transition(ctx, companyID, id, ActionStart, Patch{})
}

// CompleteInterview moves an IN_PROGRESS interview to COMPLETED and
// records the duration and any supplied feedback, rating and analysis.
func (s *Service) CompleteInterview(ctx context.Context, companyID, id string, in CompleteInput) (*Interview, error) {
	p, err := in.patch()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, companyID, id, ActionComplete, p)
}

// CancelInterview cancels a SCHEDULED or IN_PROGRESS interview, storing
// the reason in its summary.
func (s *Service) CancelInterview(ctx context.Context, companyID, id, reason string) (*Interview, error) {
	return s.transition(ctx, companyID, id, ActionCancel, Patch{Summary: ptr(cancelSummary(reason))})
}

func cancelSummary(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "Cancelled"
	}
	return "Cancelled: " + reason
}

// ExpireOverdue completes IN_PROGRESS interviews that have run past their
// maxDuration at now. It returns how many were closed.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.ListOverdueInterviews(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue interviews: %w", err)
	}
	closed := 0
	for _, iv := range overdue {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		_, err := s.transition(ctx, AgentScope, iv.ID, ActionExpire, Patch{Summary: ptr(ExpiredSummary)})
		var terr *TransitionError
		switch {
		case err == nil:
			closed++
		case errors.As(err, &terr), errors.Is(err, ErrNotFound):
			// completed, cancelled or removed since it was listed
		default:
			slog.Warn("expire interview failed", "interviewId", iv.ID, "err", err)
		}
	}
	return closed, nil
}

// transition applies action to an interview through the transition table
// with a compare-and-set write. A lost race re-reads the row and
// re-evaluates the table.
func (s *Service) transition(ctx context.Context, companyID, id string, action Action, p Patch) (*Interview, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		iv, err := s.owned(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		to, ok := Next(iv.Status, action)
		if !ok {
			return nil, &TransitionError{From: iv.Status, Action: action}
		}
		updated, err := s.store.TransitionInterview(ctx, id, iv.Status, to, lifecyclePatch(p, action, iv, s.now()))
		if err != nil {
			return nil, fmt.Errorf("%s interview %s: %w", action, id, err)
		}
		if updated == nil {
			continue
		}
		s.afterTransition(ctx, iv.Status, updated)
		return updated, nil
	}
	return nil, fmt.Errorf("%s interview %s: %w", action, id, ErrConflict)
}

// lifecyclePatch adds the timestamps an action sets to p.
func lifecyclePatch(p Patch, action Action, iv *Interview, now time.Time) Patch {
	switch action {
	case ActionStart:
		p.StartedAt = &now
	case ActionComplete, ActionExpire:
		p.CompletedAt = &now
		if iv.StartedAt != nil {
			p.Duration = ptr(max(0, int(now.Sub(*iv.StartedAt).Seconds())))
		}
	}
	return p
}

func (s *Service) afterTransition(ctx context.Context, from Status, iv *Interview) {
	if iv.Status == StatusCompleted && iv.ApplicationID != "" {
		if err := s.store.SetApplicationStatus(ctx, iv.ApplicationID, ApplicationInterviewed,
			ApplicationInterviewScheduled); err != nil {
			slog.Warn("mark application interviewed failed", "applicationId", iv.ApplicationID, "err", err)
		}
	}
	s.publish(ctx, from, iv)
	slog.Info("interview transitioned", "interviewId", iv.ID, "from", from, "to", iv.Status)
}
