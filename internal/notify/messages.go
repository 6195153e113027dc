package notify

// StatusSubject carries job lifecycle events between processes.
const StatusSubject = "jobs.status"

// StatusEvent describes one job reaching a terminal handler outcome. Workers
// publish these; dashboards subscribe to them.
type StatusEvent struct {
	JobID      string  `json:"job_id"`
	JobType    string  `json:"job_type"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}
