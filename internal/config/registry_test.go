package config

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/hi-liyan/rjob/internal/job"
)

// minimalDoc returns a document holding one job with only required fields.
func minimalDoc() *Document {
	return &Document{
		HTTPJobs: []JobEntry{{
			Name:    "minimal",
			Cron:    "* * * * *",
			Request: RequestEntry{URL: "https://example.com"},
		}},
	}
}

func TestBuildRegistry_Defaults(t *testing.T) {
	t.Parallel()

	reg, err := BuildRegistry(minimalDoc(), slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}

	j := reg.Jobs()[0]
	if !j.Enable {
		t.Error("enable should default to true")
	}
	if j.Timeout != 5000*time.Millisecond {
		t.Errorf("timeout = %v, want 5s", j.Timeout)
	}
	if j.MaxRetry != 3 {
		t.Errorf("max_retry = %d, want 3", j.MaxRetry)
	}
	if j.Request.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", j.Request.Method)
	}
	if reg.Location() != time.UTC {
		t.Errorf("location = %v, want UTC when timezone absent", reg.Location())
	}
}

func TestBuildRegistry_ExplicitValuesSurviveDefaults(t *testing.T) {
	t.Parallel()

	enable := false
	timeout := uint(250)
	retries := uint(0)
	doc := &Document{
		Timezone: "Asia/Shanghai",
		HTTPJobs: []JobEntry{{
			Name:      "tuned",
			Enable:    &enable,
			Cron:      "*/5 * * * * *",
			TimeoutMS: &timeout,
			MaxRetry:  &retries,
			Request:   RequestEntry{URL: "https://example.com", Method: "delete"},
		}},
	}

	reg, err := BuildRegistry(doc, slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}

	j := reg.Jobs()[0]
	if j.Enable {
		t.Error("explicit enable=false was overridden")
	}
	if j.Timeout != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", j.Timeout)
	}
	if j.MaxRetry != 0 {
		t.Errorf("max_retry = %d, want 0", j.MaxRetry)
	}
	if j.Request.Method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", j.Request.Method)
	}
	if reg.Timezone() != "Asia/Shanghai" {
		t.Errorf("timezone = %q", reg.Timezone())
	}
}

func TestBuildRegistry_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	t.Parallel()

	doc := minimalDoc()
	doc.Timezone = "Mars/Olympus_Mons"

	reg, err := BuildRegistry(doc, slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	if reg.Location() != time.UTC {
		t.Errorf("location = %v, want UTC fallback", reg.Location())
	}
}

func TestBuildRegistry_ZeroJobs(t *testing.T) {
	t.Parallel()

	_, err := BuildRegistry(&Document{}, slog.Default())
	if !errors.Is(err, job.ErrNoJobs) {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
}

func TestBuildRegistry_UnrecognizedMethodFallsBackToGET(t *testing.T) {
	t.Parallel()

	doc := minimalDoc()
	doc.HTTPJobs[0].Request.Method = "TELEPORT"

	reg, err := BuildRegistry(doc, slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	if got := reg.Jobs()[0].Request.Method; got != http.MethodGet {
		t.Errorf("method = %q, want GET fallback", got)
	}
}
