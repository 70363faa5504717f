// Package phab is a Phabricator Conduit client implementing
// reconcile.Tracker on top of project.search, maniphest.search and
// maniphest.edit.
package phab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/phalerts/internal/phab")

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20
)

// Observer receives the duration of every Conduit call, including failed
// ones. outcome is "success" or "error".
type Observer func(method, outcome string, dur time.Duration)

// Client talks to the Conduit API of a single Phabricator instance.
type Client struct {
	baseURL    string
	user       string
	token      string
	httpClient *http.Client
	observer   Observer
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithObserver registers a call duration observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a Client for the Phabricator at baseURL, e.g.
// https://phabricator.example.com. user is the account owning token.
func New(baseURL, user, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("phab: base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("phab: invalid base URL %q", baseURL)
	}
	if token == "" {
		return nil, fmt.Errorf("phab: API token is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		observer: func(string, string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TaskURL returns the browse URL of task id.
func (c *Client) TaskURL(id int) string {
	return fmt.Sprintf("%s/T%d", c.baseURL, id)
}

// envelope is the response wrapper of every Conduit method.
type envelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

// call invokes a Conduit method and returns its raw result. The call is
// timed and traced on every exit path.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (_ json.RawMessage, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "conduit."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "conduit"),
			attribute.String("rpc.method", method),
			attribute.String("phalerts.tracker.user", c.user),
		),
	)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.observer(method, outcome, time.Since(start))
	}()

	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["__conduit__"] = map[string]any{"token": c.token}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal params: %w", method, err)
	}
	form := url.Values{}
	form.Set("params", string(encoded))
	form.Set("output", "json")
	form.Set("__conduit__", "1")

	endpoint := c.baseURL + "/api/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: base URL is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Info: truncate(string(body), 512)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if env.ErrorCode != nil && *env.ErrorCode != "" {
		info := ""
		if env.ErrorInfo != nil {
			info = *env.ErrorInfo
		}
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Code: *env.ErrorCode, Info: info}
	}
	return env.Result, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
