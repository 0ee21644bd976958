package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// sourceNames are the recognized jobs file names, checked in order.
var sourceNames = []string{"jobs.json", "jobs.yaml", "jobs.yml"}

// Sentinel errors for jobs file discovery.
var (
	ErrNoSource          = errors.New("config: no jobs file found")
	ErrConflictingSource = errors.New("config: multiple jobs files found")
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Discover locates the jobs file in dir. Exactly one of jobs.json,
// jobs.yaml, or jobs.yml must exist; zero or more than one is an error.
func Discover(dir string) (string, error) {
	var found []string
	for _, name := range sourceNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in %s (expected one of %v)", ErrNoSource, dir, sourceNames)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %v (keep exactly one)", ErrConflictingSource, found)
	}
}

// Load reads a jobs file, expands environment variables, and decodes it.
// The format is selected by extension: .yaml/.yml use YAML, everything
// else is treated as JSON.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &doc); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(expanded, &doc); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	return &doc, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in the raw bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil
		defaultVal := ""
		if hasDefault {
			defaultVal = string(subs[2])
		}

		value, ok := os.LookupEnv(name)
		if ok {
			return []byte(value)
		}

		if hasDefault {
			return []byte(defaultVal)
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
