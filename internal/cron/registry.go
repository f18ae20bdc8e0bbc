package cron

import (
	"context"
	"fmt"
	"sort"
)

// Job is one maintenance task run per cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order with unique names.
type Registry struct {
	jobs  []Job
	index map[string]Job
}

// NewRegistry registers jobs in order. Nil jobs and repeated names are skipped.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{index: map[string]Job{}}
	for _, job := range jobs {
		_ = r.Register(job)
	}
	return r
}

// Register appends job unless its name is already taken.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if _, taken := r.index[job.Name()]; taken {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.index[job.Name()] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the jobs in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists registered job names alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select narrows the registry to the named jobs, keeping registration order.
// An empty selection returns r unchanged.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("unknown job %q (have %v)", name, r.Names())
		}
		wanted[name] = true
	}
	out := NewRegistry()
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}
