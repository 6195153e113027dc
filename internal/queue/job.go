package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResultStatus is the terminal outcome of a job's handler.
type ResultStatus string

const (
	ResultOK    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

// Job is one unit of background work. It is owned by the queue once pushed
// and never mutated afterwards. The JSON field names are the wire format
// shared with every worker process popping from the same namespace.
type Job struct {
	ID          string          `json:"job_id"`
	Type        string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	RequestedBy string          `json:"requested_by,omitempty"`
	ResultTTL   int             `json:"result_ttl"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// TTL returns the job's result slot lifetime as a duration.
func (j *Job) TTL() time.Duration {
	if j.ResultTTL <= 0 {
		return 120 * time.Second
	}
	return time.Duration(j.ResultTTL) * time.Second
}

// String returns a string representation of the job
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %s, Type: %s, RequestedBy: %s}", j.ID, j.Type, j.RequestedBy)
}

// Result is the outcome published into a job's result slot. It lives there
// until its TTL elapses, whether or not a waiter ever reads it.
type Result struct {
	JobID      string          `json:"job_id"`
	Status     ResultStatus    `json:"status"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      string          `json:"error,omitempty"`
	ProducedAt time.Time       `json:"produced_at"`
}

// OK reports whether the handler succeeded.
func (r *Result) OK() bool {
	return r.Status == ResultOK
}

// NewOKResult builds a success result, marshaling the handler's output value.
func NewOKResult(jobID string, value any) (*Result, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &SerializationError{Op: "encode result value", Err: err}
	}
	return &Result{
		JobID:      jobID,
		Status:     ResultOK,
		Value:      data,
		ProducedAt: time.Now().UTC(),
	}, nil
}

// NewErrorResult builds a failure result carrying the failure detail.
func NewErrorResult(jobID, detail string) *Result {
	return &Result{
		JobID:      jobID,
		Status:     ResultError,
		Error:      detail,
		ProducedAt: time.Now().UTC(),
	}
}
