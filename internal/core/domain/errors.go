package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")

	errMissingTitle = errors.New("title is required")
)

func missingInstrumentError(index int) error {
	return fmt.Errorf("part %d: instrument name is required", index)
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// InvalidTransitionError rejects a state-machine write whose session is no
// longer in the expected status. Current is always populated so callers can
// tell "already approved/rejected" apart from "not found".
type InvalidTransitionError struct {
	SessionID string
	Current   SessionStatus
	Attempted SessionStatus
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("session %s: cannot transition to %s: %s (current status %s)",
			e.SessionID, e.Attempted, e.Reason, e.Current)
	}
	return fmt.Sprintf("session %s: cannot transition to %s from current status %s",
		e.SessionID, e.Attempted, e.Current)
}

// IsInvalidTransition extracts a transition guard violation from an error
// chain.
func IsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}
