package quiz

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNoParticipant is returned when an operation needs a participant and none is set.
	ErrNoParticipant = errors.New("participant not set")
	// ErrTimerNotStarted is returned when answering or submitting before the timer runs.
	ErrTimerNotStarted = errors.New("timer not started")
	// ErrTimerAlreadyStarted is returned by StartTimer once the countdown is running. State is unchanged.
	ErrTimerAlreadyStarted = errors.New("timer already started")
	// ErrQuestionNotFound indicates an answer for an unknown question id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCompleted is returned for mutations after the session has been submitted.
	ErrCompleted = errors.New("quiz already completed")
)

// ValidationError carries field-level messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
