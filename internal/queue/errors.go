package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means the shared store cannot be reached.
	ErrBackendUnavailable = errors.New("queue backend unavailable")

	// ErrTimedOut means a result wait hit its deadline before a publish.
	ErrTimedOut = errors.New("timed out waiting for result")

	// ErrHandlerNotFound means a popped job's type has no registered handler.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrStoreClosed means the store was shut down while an operation was in flight.
	ErrStoreClosed = errors.New("queue store closed")
)

// ValidationError reports a malformed job before it reaches the queue.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid job: %s %s", e.Field, e.Reason)
}

// SerializationError reports a payload or result that cannot be encoded or decoded.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failed (%s): %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// HandlerExecutionError wraps a failure raised by a job handler. Worker loops
// catch it and publish it as an error result; it never crashes a worker.
type HandlerExecutionError struct {
	JobType string
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler for %q failed: %v", e.JobType, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}
