// Package job defines the immutable job model: the request template, the
// schedulable job, and the registry the scheduler and executor read from.
package job

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrNoJobs is returned when a registry is constructed with zero jobs.
var ErrNoJobs = errors.New("job: registry contains no jobs")

// Job describes one schedulable unit of work. Values are copied into the
// registry at construction time and never mutated afterwards.
type Job struct {
	// Name is the correlation label used in logs. Uniqueness is not
	// enforced, but duplicate names make log output hard to attribute.
	Name string

	// Enable controls whether the scheduler ever fires this job.
	// Disabled jobs stay in the registry for introspection.
	Enable bool

	// Cron is the schedule expression, evaluated in the registry timezone.
	Cron string

	// Timeout bounds each individual send attempt.
	Timeout time.Duration

	// MaxRetry is the maximum number of send attempts per firing.
	// Zero means the firing makes no network call at all.
	MaxRetry uint

	// Request is the HTTP request template fired on each match.
	Request RequestTemplate
}

// Registry is the resolved, validated set of jobs plus the single timezone
// they are evaluated against. It is immutable after construction.
type Registry struct {
	location *time.Location
	timezone string
	jobs     []Job
}

// NewRegistry builds a registry from the given location and jobs.
// Returns ErrNoJobs if jobs is empty: a runner with nothing to schedule
// is a fatal startup condition, not an idle process.
func NewRegistry(loc *time.Location, jobs []Job) (*Registry, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Registry{
		location: loc,
		timezone: loc.String(),
		jobs:     copyJobs(jobs),
	}, nil
}

// copyJobs clones the slice and the header maps inside it, so neither the
// caller nor registry readers can mutate shared state.
func copyJobs(jobs []Job) []Job {
	out := make([]Job, len(jobs))
	copy(out, jobs)
	for i := range out {
		out[i].Request.Headers = maps.Clone(out[i].Request.Headers)
	}
	return out
}

// Location returns the timezone all cron expressions are evaluated in.
func (r *Registry) Location() *time.Location {
	return r.location
}

// Timezone returns the IANA identifier of the registry timezone.
func (r *Registry) Timezone() string {
	return r.timezone
}

// Jobs returns a copy of the job list in declaration order.
func (r *Registry) Jobs() []Job {
	return copyJobs(r.jobs)
}

// Len returns the total number of jobs, enabled or not.
func (r *Registry) Len() int {
	return len(r.jobs)
}

// Enabled returns the number of jobs the scheduler will actually schedule.
func (r *Registry) Enabled() int {
	n := 0
	for _, j := range r.jobs {
		if j.Enable {
			n++
		}
	}
	return n
}

// String implements fmt.Stringer for firing logs.
func (j Job) String() string {
	return fmt.Sprintf("name: %s, enable: %t, cron: %s, timeout: %s, max_retry: %d, request: [%s]",
		j.Name, j.Enable, j.Cron, j.Timeout, j.MaxRetry, j.Request)
}
