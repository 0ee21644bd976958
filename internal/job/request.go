package job

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// userAgent identifies outbound requests from this runner.
const userAgent = "rjob"

// methods is the recognized HTTP method set. Anything else resolves to GET.
var methods = map[string]string{
	http.MethodGet:     http.MethodGet,
	http.MethodPost:    http.MethodPost,
	http.MethodPut:     http.MethodPut,
	http.MethodPatch:   http.MethodPatch,
	http.MethodDelete:  http.MethodDelete,
	http.MethodOptions: http.MethodOptions,
	http.MethodHead:    http.MethodHead,
}

// ResolveMethod maps a case-insensitive method string to a canonical HTTP
// method, falling back to GET for unrecognized values.
func ResolveMethod(method string) string {
	if m, ok := methods[strings.ToUpper(method)]; ok {
		return m
	}
	return http.MethodGet
}

// RequestTemplate describes the HTTP request a job fires.
type RequestTemplate struct {
	// URL is the target, taken verbatim.
	URL string

	// Method is resolved through ResolveMethod at request construction.
	Method string

	// Headers are explicit request headers. Keys are case-insensitive
	// per HTTP semantics; values must be valid header values.
	Headers map[string]string

	// Body is the serialized JSON payload. Empty means no body.
	// A non-empty body forces Content-Type: application/json, overriding
	// any explicit header.
	Body string
}

// Validate checks that the template can be turned into a well-formed
// request: non-empty parseable URL and representable header names and
// values. Construction failures are surfaced here, before any attempt
// is made.
func (t RequestTemplate) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("job: request url is required")
	}
	if _, err := url.Parse(t.URL); err != nil {
		return fmt.Errorf("job: invalid request url %q: %w", t.URL, err)
	}
	for name, value := range t.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("job: invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("job: invalid value for header %q", name)
		}
	}
	return nil
}

// NewHTTPRequest builds a fresh request from the template. Each attempt
// needs its own request so the body reader starts at the beginning.
func (t RequestTemplate) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var body *strings.Reader
	if t.Body != "" {
		body = strings.NewReader(t.Body)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, ResolveMethod(t.Method), t.URL, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, ResolveMethod(t.Method), t.URL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("job: building request for %s: %w", t.URL, err)
	}

	req.Header.Set("User-Agent", userAgent)
	for name, value := range t.Headers {
		req.Header.Set(name, value)
	}
	if t.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// String implements fmt.Stringer. The body is included raw: job documents
// are operator-authored and not treated as secret.
func (t RequestTemplate) String() string {
	headers := "none"
	if len(t.Headers) > 0 {
		headers = fmt.Sprintf("%v", t.Headers)
	}
	body := "none"
	if t.Body != "" {
		body = t.Body
	}
	return fmt.Sprintf("url: %s, method: %s, headers: %s, body: %s",
		t.URL, ResolveMethod(t.Method), headers, body)
}
