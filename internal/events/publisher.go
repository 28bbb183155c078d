// Package events fans interview lifecycle events out to subscribers.
package events

import (
	"context"
	"errors"
	"time"
)

// StatusChannel is the Redis channel (and AMQP routing-key prefix) for
// interview status changes.
const StatusChannel = "EVENT_INTERVIEW_STATUS"

// StatusChanged is published after every committed lifecycle transition.
type StatusChanged struct {
	Type        string    `json:"type"`
	InterviewID string    `json:"interviewId"`
	RoomName    string    `json:"roomName"`
	CompanyID   string    `json:"companyId"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	At          time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishStatus(ctx context.Context, ev StatusChanged) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) PublishStatus(ctx context.Context, ev StatusChanged) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishStatus(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishStatus(context.Context, StatusChanged) error { return nil }
