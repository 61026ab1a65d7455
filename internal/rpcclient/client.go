// Package rpcclient is a JSON-RPC client for the bridge's HTTP listener.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hassbridge/internal/rpc"
)

// DefaultTimeout bounds each call when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a reply is read.
const maxResponseSize = 10 << 20

// ErrHTTPStatus is returned when the listener answers outside the envelope.
var ErrHTTPStatus = errors.New("rpcclient: unexpected HTTP status")

// Client sends request envelopes to a bridge over HTTP.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	requestID  atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// New creates a Client for the bridge at baseURL, e.g. "http://homeassistant.local:8099".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one request and returns its result.
//
// Parameters:
//   - ctx: Context for cancellation
//   - method: Method name, e.g. "get_state"
//   - params: Method params; nil sends an empty object
//
// Returns:
//   - json.RawMessage: The result member of the reply
//   - error: *rpc.Error for an error reply, ErrHTTPStatus for a non-200
//     response, or a transport/decoding failure
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	id := json.RawMessage(strconv.FormatInt(c.requestID.Add(1), 10))
	body, err := json.Marshal(rpc.Request{
		JSONRPC: rpc.Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/", body)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	var resp rpc.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("call %s: decode response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if string(resp.ID) != string(id) {
		return nil, fmt.Errorf("call %s: reply id %s does not match request id %s", method, resp.ID, id)
	}
	return resp.Result, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*rpc.HealthStatus, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	var status rpc.HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("health: decode response: %w", err)
	}
	return &status, nil
}

// Info fetches the capability descriptor from GET /.
func (c *Client) Info(ctx context.Context) (*rpc.ServerInfo, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	var info rpc.ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("info: decode response: %w", err)
	}
	return &info, nil
}

// GetStates returns every entity state.
func (c *Client) GetStates(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, rpc.MethodGetStates, nil)
}

// GetState returns the state of one entity.
func (c *Client) GetState(ctx context.Context, entityID string) (json.RawMessage, error) {
	return c.Call(ctx, rpc.MethodGetState, map[string]any{"entity_id": entityID})
}

// CallService calls domain.service. entityID and data are optional.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string, data map[string]any) (json.RawMessage, error) {
	params := map[string]any{"domain": domain, "service": service}
	if entityID != "" {
		params["entity_id"] = entityID
	}
	if len(data) > 0 {
		params["data"] = data
	}
	return c.Call(ctx, rpc.MethodCallService, params)
}

// GetAddonInfo returns the Supervisor's description of the add-on.
func (c *Client) GetAddonInfo(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, rpc.MethodGetAddonInfo, nil)
}

// GetHistory returns the history of entityID over the last hours.
// A zero hours uses the server default.
func (c *Client) GetHistory(ctx context.Context, entityID string, hours float64) (json.RawMessage, error) {
	params := map[string]any{"entity_id": entityID}
	if hours > 0 {
		params["hours"] = hours
	}
	return c.Call(ctx, rpc.MethodGetHistory, params)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
