// Package config locates, decodes, and validates the jobs document
// (jobs.json, jobs.yaml, or jobs.yml) and turns it into the job registry.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Loader defaults for omitted fields.
const (
	defaultTimeoutMS = 5000
	defaultMaxRetry  = 3
)

// Document is the top-level structure of the jobs file.
type Document struct {
	// Timezone is the IANA identifier all cron expressions are evaluated
	// in. Empty or unknown values fall back to UTC.
	Timezone string `json:"timezone" yaml:"timezone"`

	// SingleFlight suppresses a firing while the previous firing of the
	// same job is still running. Off by default: overlapping firings of
	// one job are allowed.
	SingleFlight bool `json:"single_flight" yaml:"single_flight"`

	// Status configures the optional status/metrics HTTP server.
	Status StatusConfig `json:"status" yaml:"status"`

	// History configures the optional SQLite firing-history store.
	History HistoryConfig `json:"history" yaml:"history"`

	// Tracing configures the optional OTLP trace exporter.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// HTTPJobs is the ordered job list.
	HTTPJobs []JobEntry `json:"http_jobs" yaml:"http_jobs"`
}

// StatusConfig holds status server settings. An empty bind disables it.
type StatusConfig struct {
	Bind string `json:"bind" yaml:"bind"`
}

// HistoryConfig holds firing-history settings. An empty path disables it.
type HistoryConfig struct {
	Path string `json:"path" yaml:"path"`
}

// TracingConfig holds trace exporter settings. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// JobEntry is one job definition as written by the operator. Pointer fields
// distinguish "omitted" from zero values so loader defaults can apply.
type JobEntry struct {
	Name      string       `json:"name" yaml:"name"`
	Enable    *bool        `json:"enable" yaml:"enable"`
	Cron      string       `json:"cron" yaml:"cron"`
	TimeoutMS *uint        `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetry  *uint        `json:"max_retry" yaml:"max_retry"`
	Request   RequestEntry `json:"request" yaml:"request"`
}

// RequestEntry is the request template of one job definition.
type RequestEntry struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method" yaml:"method"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	Body    BodyValue         `json:"body" yaml:"body"`
}

// BodyValue accepts either a raw string or a structured object in the jobs
// document. Objects are serialized to compact JSON text, matching what the
// executor sends on the wire.
type BodyValue string

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BodyValue) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return fmt.Errorf("config: decoding request body: %w", err)
		}
		*b = BodyValue(s)
		return nil
	}

	var v any
	if err := value.Decode(&v); err != nil {
		return fmt.Errorf("config: decoding request body: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: serializing request body: %w", err)
	}
	*b = BodyValue(raw)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BodyValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*b = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("config: decoding request body: %w", err)
		}
		*b = BodyValue(s)
		return nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return fmt.Errorf("config: invalid request body: %w", err)
	}
	*b = BodyValue(buf.String())
	return nil
}
