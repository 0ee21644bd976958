// Package scheduler compiles job cron expressions in the registry timezone
// and dispatches an independent, fire-and-forget firing for every match.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/hi-liyan/rjob/internal/job"
)

// Runner performs one firing of a job. Implemented by the executor.
type Runner interface {
	Fire(ctx context.Context, j job.Job)
}

// newParser returns the expression parser: the standard five fields with
// an optional leading seconds field, plus @descriptors.
func newParser() cron.Parser {
	return cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
}

// CheckExpressions compiles every enabled job's cron expression without
// starting evaluation. Used by the config check command.
func CheckExpressions(registry *job.Registry) error {
	parser := newParser()
	for _, j := range registry.Jobs() {
		if !j.Enable {
			continue
		}
		if _, err := parser.Parse(j.Cron); err != nil {
			return fmt.Errorf("scheduler: invalid cron expression %q for job %q: %w", j.Cron, j.Name, err)
		}
	}
	return nil
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithSingleFlight suppresses a match while the previous firing of the same
// job is still running. Off by default: overlapping firings of one job are
// documented behavior, not a bug.
func WithSingleFlight(enabled bool) Option {
	return func(s *Scheduler) { s.singleFlight = enabled }
}

// Scheduler evaluates the registry's cron expressions and triggers firings.
// It performs no I/O itself and never blocks on a running firing.
type Scheduler struct {
	mu           sync.Mutex
	registry     *job.Registry
	runner       Runner
	logger       *slog.Logger
	singleFlight bool
	cron         *cron.Cron
	cancel       context.CancelFunc
	scheduled    int
}

// New creates a scheduler over an immutable registry.
func New(registry *job.Registry, runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		registry: registry,
		runner:   runner,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start compiles every enabled job's cron expression once and begins
// evaluation. Expressions use the standard five fields plus an optional
// leading seconds field for sub-minute schedules. A compile failure is a
// configuration error naming the offending job; disabled jobs are never
// scheduled regardless of their expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(newParser()), cron.WithLocation(s.registry.Location()))

	s.scheduled = 0
	for _, j := range s.registry.Jobs() {
		if !j.Enable {
			s.logger.Info("scheduler: job disabled, not scheduled", "job", j.Name)
			continue
		}

		var lock *sync.Mutex
		if s.singleFlight {
			lock = &sync.Mutex{}
		}

		jb := j
		_, err := s.cron.AddFunc(jb.Cron, func() { s.dispatch(ctx, jb, lock) })
		if err != nil {
			cancel()
			return fmt.Errorf("scheduler: invalid cron expression %q for job %q: %w", jb.Cron, jb.Name, err)
		}
		s.scheduled++
	}

	s.cron.Start()
	s.logger.Info("scheduler: started",
		"jobs", s.scheduled,
		"timezone", s.registry.Timezone(),
		"single_flight", s.singleFlight,
	)
	return nil
}

// Scheduled returns the number of jobs actually registered with the cron
// evaluator (enabled jobs only). Valid after Start.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// dispatch runs in a fresh goroutine per match (the cron runner spawns one
// per activation), so overlapping firings of one job proceed concurrently
// unless single-flight is enabled.
func (s *Scheduler) dispatch(ctx context.Context, j job.Job, lock *sync.Mutex) {
	if lock != nil {
		// TryLock is atomic. If the previous firing is still running,
		// skip this match entirely.
		if !lock.TryLock() {
			s.logger.Warn("scheduler: previous firing still running, skipping match", "job", j.Name)
			return
		}
		defer lock.Unlock()
	}
	// A dispatched firing runs to completion on its own timeouts; stopping
	// the scheduler must not cut attempts short.
	s.runner.Fire(context.WithoutCancel(ctx), j)
}

// Stop halts schedule evaluation and waits for entries the cron runner has
// already started. The process-lifetime entry point never calls this; it
// exists for tests and orderly resource closure.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler: stopped")
	}
	return nil
}
