package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hi-liyan/rjob/internal/executor"
	"github.com/hi-liyan/rjob/internal/history"
	"github.com/hi-liyan/rjob/internal/job"
)

func testRegistry(t *testing.T) *job.Registry {
	t.Helper()
	reg, err := job.NewRegistry(time.UTC, []job.Job{
		{Name: "ping", Enable: true, Cron: "*/5 * * * *", Request: job.RequestTemplate{URL: "https://example.com", Method: "POST"}},
		{Name: "off", Enable: false, Cron: "0 0 * * *", Request: job.RequestTemplate{URL: "https://example.org"}},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

// fakeHistory returns canned firings.
type fakeHistory struct {
	firings []history.Firing
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Firing, error) {
	if limit < len(f.firings) {
		return f.firings[:limit], nil
	}
	return f.firings, nil
}

func newTestServer(t *testing.T, hist HistorySource) *Server {
	t.Helper()
	s, err := NewServer(Config{Bind: "127.0.0.1:0"}, testRegistry(t), NewMetrics(), hist, slog.Default())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	s.startedAt = time.Now()
	return s
}

func TestNewServer_InvalidBind(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Config{Bind: "not-an-address"}, testRegistry(t), NewMetrics(), nil, slog.Default())
	if err == nil {
		t.Fatal("expected error for invalid bind address")
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" || resp.Jobs != 2 || resp.Enabled != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{firings: []history.Firing{
		{ID: "abc", Job: "ping", Outcome: "success", Status: 200, Attempts: 1},
	}}
	s := newTestServer(t, hist)

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Timezone != "UTC" {
		t.Errorf("timezone = %q", resp.Timezone)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2 (disabled jobs stay visible)", len(resp.Jobs))
	}
	if resp.Jobs[0].Method != http.MethodPost {
		t.Errorf("method = %q, want POST", resp.Jobs[0].Method)
	}
	if len(resp.Recent) != 1 || resp.Recent[0].ID != "abc" {
		t.Errorf("recent = %+v", resp.Recent)
	}
}

func TestHandleMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.metrics.ObserveFiring("ping", executor.OutcomeSuccess, 42*time.Millisecond)
	s.metrics.ObserveAttempt("ping", true)
	s.metrics.ObserveAttempt("ping", false)

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`rjob_firings_total{job="ping",outcome="success"} 1`,
		`rjob_attempts_total{job="ping",result="response"} 1`,
		`rjob_attempts_total{job="ping",result="transport_error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
