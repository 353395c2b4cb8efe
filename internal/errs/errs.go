// Package errs holds the error taxonomy shared by the room coordination core.
// Every error here is expected and recoverable; callers report it back to the
// originating connection only.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("caller does not hold the turn")
	ErrInvalidTransition = errors.New("mode change rejected")
	ErrDuplicateID       = errors.New("room id already in use")
	ErrInvalidID         = errors.New("room id may only contain letters, digits, hyphen and underscore")
	ErrEmpty             = errors.New("backlog is empty")
	ErrAlreadyJoined     = errors.New("connection already joined")
	ErrInvalidMode       = errors.New("unknown mode")
)

// TransitionError reports a rejected return to take mode together with the
// counts the caller needs to know when a retry will succeed.
type TransitionError struct {
	QueueLength       int
	RequiredThreshold int
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("backlog holds %d items, must be at or below %d (%d remaining)",
		e.QueueLength, e.RequiredThreshold, e.Remaining())
}

// Remaining is how many items still have to leave the backlog.
func (e *TransitionError) Remaining() int {
	if n := e.QueueLength - e.RequiredThreshold; n > 0 {
		return n
	}
	return 0
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
