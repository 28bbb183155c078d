package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an interview, job post, candidate or
	// application does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller's company does not own the
	// underlying job post, and wraps every rejected lifecycle transition.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned by a Store when a unique key already exists.
	ErrConflict = errors.New("conflict")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransitionError reports a lifecycle action the state machine rejected.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s interview in status %s", e.Action, e.From)
}

// Unwrap makes errors.Is(err, ErrForbidden) hold for rejected transitions.
func (e *TransitionError) Unwrap() error { return ErrForbidden }
