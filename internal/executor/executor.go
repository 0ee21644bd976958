// Package executor performs one firing of a job: request construction,
// a bounded retry loop with per-attempt timeouts, and outcome logging.
// Firings are fire-and-forget from the scheduler's perspective; every
// outcome is visible only through logs, metrics, and the history recorder.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hi-liyan/rjob/internal/job"
)

// Outcome classifies how a firing ended.
type Outcome string

const (
	// OutcomeSuccess is a 2xx response on some attempt.
	OutcomeSuccess Outcome = "success"
	// OutcomeHTTPError is any non-2xx response. A received response is
	// terminal regardless of status and never consumes further retries.
	OutcomeHTTPError Outcome = "http_error"
	// OutcomeTransportError means every attempt failed before a response
	// arrived (timeout, connection refused, DNS failure).
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeInvalidRequest means the request template could not be turned
	// into a request; nothing was sent.
	OutcomeInvalidRequest Outcome = "invalid_request"
	// OutcomeSkipped means max_retry is zero; nothing was sent.
	OutcomeSkipped Outcome = "skipped"
)

// Result is the final state of one firing.
type Result struct {
	FiringID   string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   uint
	Outcome    Outcome
	Status     int    // last HTTP status, 0 if no response arrived
	Error      string // last transport/construction error, empty otherwise
}

// Metrics receives per-attempt and per-firing observations.
type Metrics interface {
	ObserveFiring(jobName string, outcome Outcome, elapsed time.Duration)
	ObserveAttempt(jobName string, ok bool)
}

// Recorder persists finished firings (e.g. the SQLite history store).
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Config configures an Executor. The zero value is usable: logging is
// discarded and metrics/history are disabled.
type Config struct {
	Client   *http.Client
	Logger   *slog.Logger
	Metrics  Metrics  // nil = disabled
	Recorder Recorder // nil = disabled
	Now      func() time.Time
	NewID    func() string
}

func (c Config) withDefaults() Config {
	if c.Client == nil {
		c.Client = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(nopHandler{})
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = NewFiringID
	}
	return c
}

// Executor fires jobs. It is safe for concurrent use; each firing owns its
// own correlation id, attempt counter, and request construction.
type Executor struct {
	cfg    Config
	tracer trace.Tracer
}

// New creates an Executor with the given configuration.
func New(cfg Config) *Executor {
	return &Executor{
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("rjob/executor"),
	}
}

// NewFiringID returns a fresh correlation identifier: a v4 UUID with the
// hyphens stripped.
func NewFiringID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Fire performs one complete firing of j. It never returns an error: all
// failures are contained within the firing and surface through logs,
// metrics, and the recorder.
func (e *Executor) Fire(ctx context.Context, j job.Job) {
	res := e.fire(ctx, j)

	if e.cfg.Recorder != nil {
		// History writes outlive any per-attempt deadline on ctx.
		if err := e.cfg.Recorder.Record(context.WithoutCancel(ctx), res); err != nil {
			e.cfg.Logger.Error("executor: recording firing failed",
				"firing", res.FiringID,
				"job", res.Job,
				"error", err,
			)
		}
	}
}

func (e *Executor) fire(ctx context.Context, j job.Job) Result {
	id := e.cfg.NewID()
	logger := e.cfg.Logger.With("firing", id, "job", j.Name)

	ctx, span := e.tracer.Start(ctx, "firing", trace.WithAttributes(
		attribute.String("rjob.job", j.Name),
		attribute.String("rjob.firing_id", id),
	))
	defer span.End()

	res := Result{
		FiringID:  id,
		Job:       j.Name,
		StartedAt: e.cfg.Now(),
	}

	logger.Info("http job start",
		"cron", j.Cron,
		"method", job.ResolveMethod(j.Request.Method),
		"url", j.Request.URL,
	)

	switch {
	case j.MaxRetry == 0:
		res.Outcome = OutcomeSkipped
		logger.Info("no attempts configured, nothing sent", "max_retry", 0)
	default:
		if err := j.Request.Validate(); err != nil {
			res.Outcome = OutcomeInvalidRequest
			res.Error = err.Error()
			logger.Error("request construction failed", "error", err)
			break
		}
		e.attempts(ctx, j, logger, &res)
	}

	res.FinishedAt = e.cfg.Now()
	elapsed := res.FinishedAt.Sub(res.StartedAt)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ObserveFiring(j.Name, res.Outcome, elapsed)
	}

	span.SetAttributes(
		attribute.String("rjob.outcome", string(res.Outcome)),
		attribute.Int("rjob.attempts", int(res.Attempts)),
	)
	if res.Outcome == OutcomeSuccess || res.Outcome == OutcomeSkipped {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(res.Outcome))
	}

	logger.Info("http job end",
		"outcome", res.Outcome,
		"attempts", res.Attempts,
		"elapsed", elapsed,
	)
	return res
}

// attempts runs the bounded retry loop. Transport failures consume retries
// and retry immediately with no backoff; any received HTTP response is
// terminal, with success vs failure distinguished only for logging.
func (e *Executor) attempts(ctx context.Context, j job.Job, logger *slog.Logger, res *Result) {
	span := trace.SpanFromContext(ctx)

	for attempt := uint(1); attempt <= j.MaxRetry; attempt++ {
		res.Attempts = attempt
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", int(attempt))))

		status, body, err := e.attempt(ctx, j)
		if err != nil {
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.ObserveAttempt(j.Name, false)
			}
			logger.Warn("http request failed",
				"attempt", attempt,
				"max_retry", j.MaxRetry,
				"error", err,
			)
			res.Outcome = OutcomeTransportError
			res.Error = err.Error()
			continue
		}

		if e.cfg.Metrics != nil {
			e.cfg.Metrics.ObserveAttempt(j.Name, true)
		}
		res.Status = status
		res.Error = ""
		if status >= 200 && status < 300 {
			res.Outcome = OutcomeSuccess
			logger.Info("http request success", "attempt", attempt, "status", status)
		} else {
			res.Outcome = OutcomeHTTPError
			logger.Warn("http request failed", "attempt", attempt, "status", status)
		}
		logger.Info("http response", "body", body)
		return
	}
}

// attempt sends the request once, bounded by the job's per-attempt timeout.
func (e *Executor) attempt(ctx context.Context, j job.Job) (int, string, error) {
	actx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	req, err := j.Request.NewHTTPRequest(actx)
	if err != nil {
		return 0, "", err
	}

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// The response itself arrived; a truncated body does not turn the
		// attempt into a transport failure.
		return resp.StatusCode, fmt.Sprintf("<body read error: %v>", err), nil
	}
	return resp.StatusCode, string(body), nil
}
