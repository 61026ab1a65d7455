package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout bounds each upstream round trip when Config.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of an upstream body is read (10 MB).
	// A full /states dump on a large install is a few MB.
	maxResponseSize = 10 << 20

	// tracerName identifies spans emitted by this package.
	tracerName = "github.com/nerrad567/hassbridge/internal/hass"
)

// Config holds the settings needed to build a Client.
type Config struct {
	// BaseURL is the Home Assistant core URL, e.g. "http://supervisor/core".
	BaseURL string

	// SupervisorURL is the Supervisor API URL, e.g. "http://supervisor".
	// Only used by GetAddonInfo.
	SupervisorURL string

	// Token is the bearer token attached to every request.
	Token string

	// Timeout bounds every call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests). Its Timeout is
	// left untouched when provided.
	HTTPClient *http.Client

	// TracerProvider overrides the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider
}

// Client calls the Home Assistant REST API.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the client is immutable after New.
type Client struct {
	baseURL       string
	supervisorURL string
	token         string
	timeout       time.Duration
	http          *http.Client
	tracer        trace.Tracer
}

// New validates cfg and returns a ready Client.
//
// Returns:
//   - *Client: Client ready for use
//   - error: If a URL is not absolute http(s) or the token is empty
func New(cfg Config) (*Client, error) {
	base, err := normaliseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	supervisor := ""
	if cfg.SupervisorURL != "" {
		supervisor, err = normaliseBaseURL(cfg.SupervisorURL)
		if err != nil {
			return nil, fmt.Errorf("supervisor url: %w", err)
		}
	}

	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		baseURL:       base,
		supervisorURL: supervisor,
		token:         cfg.Token,
		timeout:       timeout,
		http:          httpClient,
		tracer:        tp.Tracer(tracerName),
	}, nil
}

func normaliseBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// BaseURL returns the configured Home Assistant core URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetStates returns every entity state (GET /api/states).
func (c *Client) GetStates(ctx context.Context) (json.RawMessage, error) {
	target, err := c.apiURL("states")
	if err != nil {
		return nil, c.invalid("get_states", err)
	}
	return c.do(ctx, "get_states", http.MethodGet, target, nil)
}

// GetState returns one entity state (GET /api/states/{entity_id}).
func (c *Client) GetState(ctx context.Context, entityID string) (json.RawMessage, error) {
	target, err := c.apiURL("states", entityID)
	if err != nil {
		return nil, c.invalid("get_state", err)
	}
	return c.do(ctx, "get_state", http.MethodGet, target, nil)
}

// CallService invokes a service (POST /api/services/{domain}/{service}).
//
// data is sent as the JSON body; a nil map is sent as {}. The caller owns
// merging entity_id into data.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error) {
	target, err := c.apiURL("services", domain, service)
	if err != nil {
		return nil, c.invalid("call_service", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return c.do(ctx, "call_service", http.MethodPost, target, data)
}

// GetServices lists available services (GET /api/services).
func (c *Client) GetServices(ctx context.Context) (json.RawMessage, error) {
	target, err := c.apiURL("services")
	if err != nil {
		return nil, c.invalid("get_services", err)
	}
	return c.do(ctx, "get_services", http.MethodGet, target, nil)
}

// GetConfig returns the core configuration (GET /api/config).
func (c *Client) GetConfig(ctx context.Context) (json.RawMessage, error) {
	target, err := c.apiURL("config")
	if err != nil {
		return nil, c.invalid("get_config", err)
	}
	return c.do(ctx, "get_config", http.MethodGet, target, nil)
}

// GetHistory returns state history for one entity from start until now
// (GET /api/history/period/{start}?filter_entity_id={entity_id}).
func (c *Client) GetHistory(ctx context.Context, entityID string, start time.Time) (json.RawMessage, error) {
	if err := checkSegment(entityID); err != nil {
		return nil, c.invalid("get_history", err)
	}
	target, err := c.apiURL("history", "period", start.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, c.invalid("get_history", err)
	}
	target += "?" + url.Values{"filter_entity_id": {entityID}}.Encode()
	return c.do(ctx, "get_history", http.MethodGet, target, nil)
}

// GetAddonInfo returns this add-on's Supervisor record
// (GET <supervisor>/addons/self/info).
func (c *Client) GetAddonInfo(ctx context.Context) (json.RawMessage, error) {
	if c.supervisorURL == "" {
		return nil, &UpstreamError{
			Op:      "get_addon_info",
			Message: "supervisor url is not configured",
			Err:     ErrUpstreamUnreachable,
		}
	}
	return c.do(ctx, "get_addon_info", http.MethodGet, c.supervisorURL+"/addons/self/info", nil)
}

// apiURL joins escaped path segments under <base>/api.
func (c *Client) apiURL(segments ...string) (string, error) {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/api")
	for _, s := range segments {
		if err := checkSegment(s); err != nil {
			return "", err
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String(), nil
}

// checkSegment rejects values that cannot stand as a single path segment.
func checkSegment(s string) error {
	switch s {
	case "":
		return errors.New("empty path segment")
	case ".", "..":
		return fmt.Errorf("path segment %q", s)
	}
	return nil
}

// invalid reports a call rejected before any request was made.
func (c *Client) invalid(op string, err error) error {
	return &UpstreamError{Op: op, Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidArgument, err)}
}

// do performs one upstream round trip and returns the JSON body.
func (c *Client) do(ctx context.Context, op, method, target string, body any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "hass."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, c.fail(span, &UpstreamError{
				Op:      op,
				Message: fmt.Sprintf("encoding request body: %v", err),
				Err:     fmt.Errorf("%w: %w", ErrInvalidArgument, err),
			})
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, c.fail(span, &UpstreamError{
			Op:      op,
			Message: fmt.Sprintf("building request: %v", err),
			Err:     fmt.Errorf("%w: %w", ErrInvalidArgument, err),
		})
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, transportError(op, err, c.timeout))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, c.fail(span, transportError(op, err, c.timeout))
	}
	if len(data) > maxResponseSize {
		return nil, c.fail(span, &UpstreamError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response exceeds %d bytes", maxResponseSize),
			Err:     ErrInvalidResponse,
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(span, &UpstreamError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: statusMessage(resp.StatusCode, data),
			Err:     ErrUpstreamStatus,
		})
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, c.fail(span, &UpstreamError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: "response is not valid JSON",
			Err:     ErrInvalidResponse,
		})
	}

	return json.RawMessage(data), nil
}

func (c *Client) fail(span trace.Span, err *UpstreamError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	return err
}

func transportError(op string, err error, timeout time.Duration) *UpstreamError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{
			Op:      op,
			Message: fmt.Sprintf("upstream did not respond within %v", timeout),
			Err:     fmt.Errorf("%w: %w", ErrUpstreamTimeout, err),
		}
	}
	return &UpstreamError{
		Op:      op,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err),
	}
}

// statusMessage renders "HTTP 404: Not Found", appending the upstream's own
// message when the body carries one ({"message": "..."}).
func statusMessage(status int, body []byte) string {
	msg := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		msg += " (" + payload.Message + ")"
	}
	return msg
}
