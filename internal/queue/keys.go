package queue

// Keys derives the store key names for one namespace. Pending jobs live under
// <namespace>:tasks and results under <namespace>:results:<job_id>, matching
// the wire convention shared by every process on the same backend.
type Keys struct {
	Namespace string
}

func (k Keys) Tasks() string {
	return k.Namespace + ":tasks"
}

func (k Keys) Result(jobID string) string {
	return k.Namespace + ":results:" + jobID
}
