package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound       = errors.New("entity not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrJobInFlight    = errors.New("a render job for this session is already in flight")
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrLockHeld       = errors.New("lock is held by another owner")
)

// StageError is raised when a stage-worker call fails: a transport error,
// a non-success payload, or a malformed response envelope. Transport marks
// failures that happened before the worker produced an application-level
// answer.
type StageError struct {
	Worker    string
	Transport bool
	Cause     error
}

func (e *StageError) Error() string {
	if e.Transport {
		return fmt.Sprintf("stage %s: transport failure: %v", e.Worker, e.Cause)
	}
	return fmt.Sprintf("stage %s: %v", e.Worker, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// NewStageError wraps cause as an application-level stage failure.
func NewStageError(worker string, cause error) *StageError {
	return &StageError{Worker: worker, Cause: cause}
}

// NewStageTransportError wraps cause as a transport-level stage failure.
func NewStageTransportError(worker string, cause error) *StageError {
	return &StageError{Worker: worker, Transport: true, Cause: cause}
}
