// Package interview defines the interview lifecycle state machine.
//
// Valid status graph:
//
//	SCHEDULED ──start──► IN_PROGRESS ──complete/expire──► COMPLETED
//	    │                     │
//	    └──────cancel─────────┴──────cancel──────────────► CANCELLED
//
// COMPLETED and CANCELLED are terminal states. Ad-hoc sessions are created
// directly in IN_PROGRESS.
package interview

import "fmt"

// Status values mirror the interview_status enum in PostgreSQL.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Action is a lifecycle operation applied to an interview.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionExpire   Action = "expire"
	ActionCancel   Action = "cancel"
)

type transitionKey struct {
	from   Status
	action Action
}

// transitions lists every allowed (from, action) → to triple.
var transitions = map[transitionKey]Status{
	{StatusScheduled, ActionStart}:     StatusInProgress,
	{StatusScheduled, ActionCancel}:    StatusCancelled,
	{StatusInProgress, ActionComplete}: StatusCompleted,
	{StatusInProgress, ActionExpire}:   StatusCompleted,
	{StatusInProgress, ActionCancel}:   StatusCancelled,
	// COMPLETED and CANCELLED are terminal: no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown interview status %q", s)
}

// Next returns the status reached by applying action to from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[transitionKey{from, action}]
	return to, ok
}

// ActionFor maps a requested target status to the action reaching it.
// Used by update endpoints that accept a raw status field.
func ActionFor(target Status) (Action, bool) {
	switch target {
	case StatusInProgress:
		return ActionStart, true
	case StatusCompleted:
		return ActionComplete, true
	case StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

// IsTerminal reports whether no action can leave s.
func IsTerminal(s Status) bool {
	for k := range transitions {
		if k.from == s {
			return false
		}
	}
	return true
}
