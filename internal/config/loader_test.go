package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDiscover_NoSource(t *testing.T) {
	t.Parallel()

	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestDiscover_SingleSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeFile(t, dir, "jobs.yaml", "http_jobs: []\n")

	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if got != want {
		t.Errorf("Discover = %q, want %q", got, want)
	}
}

func TestDiscover_ConflictingSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "jobs.json", "{}")
	writeFile(t, dir, "jobs.yml", "http_jobs: []\n")

	_, err := Discover(dir)
	if !errors.Is(err, ErrConflictingSource) {
		t.Fatalf("expected ErrConflictingSource, got %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.yaml", `
timezone: Asia/Shanghai
http_jobs:
  - name: ping
    cron: "*/5 * * * * *"
    request:
      url: https://example.com/ping
      method: post
      headers:
        Authorization: Bearer abc
      body:
        hello: world
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if doc.Timezone != "Asia/Shanghai" {
		t.Errorf("timezone = %q", doc.Timezone)
	}
	if len(doc.HTTPJobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(doc.HTTPJobs))
	}
	entry := doc.HTTPJobs[0]
	if entry.Name != "ping" || entry.Cron != "*/5 * * * * *" {
		t.Errorf("entry = %+v", entry)
	}
	if string(entry.Request.Body) != `{"hello":"world"}` {
		t.Errorf("body = %q, want serialized JSON object", entry.Request.Body)
	}
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.json", `{
		"http_jobs": [{
			"name": "poke",
			"enable": false,
			"cron": "0 * * * *",
			"request": {
				"url": "https://example.com",
				"body": {"a": 1}
			}
		}]
	}`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	entry := doc.HTTPJobs[0]
	if entry.Enable == nil || *entry.Enable {
		t.Error("enable should decode to explicit false")
	}
	if string(entry.Request.Body) != `{"a":1}` {
		t.Errorf("body = %q, want compacted JSON", entry.Request.Body)
	}
}

func TestLoad_StringBody(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.yaml", `
http_jobs:
  - name: raw
    cron: "* * * * *"
    request:
      url: https://example.com
      body: '{"already":"serialized"}'
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := string(doc.HTTPJobs[0].Request.Body); got != `{"already":"serialized"}` {
		t.Errorf("body = %q, want raw string preserved", got)
	}
}

func TestLoad_Unparseable(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.json", `{"http_jobs": [`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("RJOB_TEST_TOKEN", "secret")

	path := writeFile(t, t.TempDir(), "jobs.yaml", `
http_jobs:
  - name: env
    cron: "* * * * *"
    request:
      url: ${RJOB_TEST_URL:-https://fallback.example.com}
      headers:
        Authorization: Bearer ${RJOB_TEST_TOKEN}
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	req := doc.HTTPJobs[0].Request
	if req.URL != "https://fallback.example.com" {
		t.Errorf("url = %q, want default expansion", req.URL)
	}
	if req.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("header = %q, want env expansion", req.Headers["Authorization"])
	}
}

func TestLoad_EnvExpansion_Unresolved(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.yaml", `
http_jobs:
  - name: env
    cron: "* * * * *"
    request:
      url: ${RJOB_TEST_DEFINITELY_UNSET}
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected unresolved variable error")
	}
}
