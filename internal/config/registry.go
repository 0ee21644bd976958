package config

import (
	"log/slog"
	"time"

	"github.com/hi-liyan/rjob/internal/job"
)

// BuildRegistry applies loader defaults (enable=true, timeout_ms=5000,
// max_retry=3, method=GET) and resolves the timezone, turning a decoded
// document into the immutable job registry. An unknown timezone degrades
// to UTC with a warning rather than aborting startup.
func BuildRegistry(doc *Document, logger *slog.Logger) (*job.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc := time.UTC
	if doc.Timezone != "" {
		resolved, err := time.LoadLocation(doc.Timezone)
		if err != nil {
			logger.Warn("config: unknown timezone, falling back to UTC",
				"timezone", doc.Timezone,
			)
		} else {
			loc = resolved
		}
	}

	jobs := make([]job.Job, 0, len(doc.HTTPJobs))
	for _, entry := range doc.HTTPJobs {
		jobs = append(jobs, job.Job{
			Name:     entry.Name,
			Enable:   orDefault(entry.Enable, true),
			Cron:     entry.Cron,
			Timeout:  time.Duration(orDefault(entry.TimeoutMS, defaultTimeoutMS)) * time.Millisecond,
			MaxRetry: orDefault(entry.MaxRetry, defaultMaxRetry),
			Request:  requestTemplate(entry.Request),
		})
	}

	return job.NewRegistry(loc, jobs)
}

// requestTemplate maps a document request entry to the immutable template.
// Method resolution (case folding, fallback to GET) happens here so the
// registry only ever holds canonical methods.
func requestTemplate(e RequestEntry) job.RequestTemplate {
	return job.RequestTemplate{
		URL:     e.URL,
		Method:  job.ResolveMethod(e.Method),
		Headers: e.Headers,
		Body:    string(e.Body),
	}
}

func orDefault[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
