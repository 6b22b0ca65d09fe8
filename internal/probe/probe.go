// Package probe issues HTTP GET requests against a running topology and compares
// the "message" field of the JSON response with an expected value.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"scenarioctl/pkg/logging"
)

const (
	DefaultBaseURL = "http://localhost:3000"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2

	maxBodySize = 1 << 20
)

// NetworkError reports that no response was received for a path.
type NetworkError struct {
	Path string
	URL  string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("probe %s: request to %s failed: %v", e.Path, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a response whose body is not JSON or has no string message field.
type ParseError struct {
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("probe %s: cannot read message from response (status %d): %v; body: %s",
		e.Path, e.Status, e.Err, e.Body)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AssertionError reports a message that differs from the expected one.
type AssertionError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("probe %s: expected message %q, got %q", e.Path, e.Expected, e.Actual)
}

// Options configures a Runner.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts after a connection-level failure.
	Retries int
}

// Runner probes paths relative to a base URL.
type Runner struct {
	base   *url.URL
	client *retryablehttp.Client
}

// NewRunner validates the base URL and builds the HTTP client.
func NewRunner(opts Options) (*Runner, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: host is required", opts.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.CheckRetry = retryConnectionErrors
	client.Logger = leveledLogger{}

	return &Runner{base: base, client: client}, nil
}

// retryConnectionErrors retries transport failures only. Any HTTP response,
// whatever its status, is an answer from the service and is evaluated as is.
func retryConnectionErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// BaseURL returns the base URL paths are resolved against.
func (r *Runner) BaseURL() string { return r.base.String() }

// Resolve returns the absolute URL for path. An absolute path replaces the path
// of the base URL; a relative one is resolved against it.
func (r *Runner) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid probe path %q: %w", path, err)
	}
	return r.base.ResolveReference(ref).String(), nil
}

// Fetch requests path and returns the message field of the JSON response.
func (r *Runner) Fetch(ctx context.Context, path string) (string, error) {
	target, err := r.Resolve(path)
	if err != nil {
		return "", &NetworkError{Path: path, URL: path, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &NetworkError{Path: path, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	logging.Debug("Probe", "GET %s", target)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", &NetworkError{Path: path, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &NetworkError{Path: path, URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	message, err := decodeMessage(body)
	if err != nil {
		return "", &ParseError{Path: path, Status: resp.StatusCode, Body: snippet(body), Err: err}
	}
	logging.Debug("Probe", "GET %s -> %d %q", target, resp.StatusCode, message)
	return message, nil
}

// Probe fetches path and requires its message to equal expected exactly.
func (r *Runner) Probe(ctx context.Context, path, expected string) error {
	actual, err := r.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if actual != expected {
		return &AssertionError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}

func decodeMessage(body []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("body is not a JSON object: %w", err)
	}
	raw, ok := payload["message"]
	if !ok {
		return "", fmt.Errorf("field \"message\" is missing")
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return "", fmt.Errorf("field \"message\" is not a string: %s", raw)
	}
	return message, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// leveledLogger routes client retry logs through the debug log.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) { logKV(msg, keysAndValues) }
func (leveledLogger) Warn(msg string, keysAndValues ...interface{})  { logKV(msg, keysAndValues) }
func (leveledLogger) Info(msg string, keysAndValues ...interface{})  { logKV(msg, keysAndValues) }
func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) { logKV(msg, keysAndValues) }

func logKV(msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	logging.Debug("Probe", "%s", b.String())
}
