package jobs

import (
	"context"
	"encoding/json"
	"sort"
)

// Handler performs one job type's work. Implementations receive the job's raw
// payload and return a JSON-serializable value.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Registry is the startup-fixed mapping from job type to handler. It copies
// the map it is given and exposes no mutation, so worker loops can share it
// without locks.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers map[string]Handler) *Registry {
	copied := make(map[string]Handler, len(handlers))
	for jobType, h := range handlers {
		copied[jobType] = h
	}
	return &Registry{handlers: copied}
}

// Lookup returns the handler for jobType, or false when none is registered.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for jobType := range r.handlers {
		types = append(types, jobType)
	}
	sort.Strings(types)
	return types
}
