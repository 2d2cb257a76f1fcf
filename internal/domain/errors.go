package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyActive         = errors.New("an active session already exists")
	ErrNoActiveSession       = errors.New("no active session")
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotHost               = errors.New("only the host may do that")
	ErrNotAParticipant       = errors.New("not a participant in this session")
	ErrSessionFull           = errors.New("session is full")
	ErrInvalidState          = errors.New("session is in the wrong state for that")
	ErrNoParticipants        = errors.New("session has no active participants")
	ErrIDGenerationExhausted = errors.New("could not generate a unique session id")
)

// ValidationError reports a single rejected configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
