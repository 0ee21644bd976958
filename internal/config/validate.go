package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a jobs document: at least one
// job, required per-job fields (name, cron, request.url), and representable
// header values. All findings are reported together.
func Validate(doc *Document) error {
	var errs []error

	if len(doc.HTTPJobs) == 0 {
		errs = append(errs, errors.New("config: at least one job must be defined in http_jobs"))
	}

	for i, entry := range doc.HTTPJobs {
		label := entry.Name
		if label == "" {
			label = fmt.Sprintf("http_jobs[%d]", i)
		}

		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("config: %s: name is required", label))
		}
		if entry.Cron == "" {
			errs = append(errs, fmt.Errorf("config: job %q: cron is required", label))
		}
		if entry.Request.URL == "" {
			errs = append(errs, fmt.Errorf("config: job %q: request.url is required", label))
			continue
		}

		// Header names and values must survive request construction.
		if err := requestTemplate(entry.Request).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: job %q: %w", label, err))
		}
	}

	return errors.Join(errs...)
}
