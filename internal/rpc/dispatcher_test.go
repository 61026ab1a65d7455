package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hassbridge/internal/hass"
	"github.com/nerrad567/hassbridge/internal/infrastructure/config"
	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
)

// upstreamCall is one request seen by the fake Home Assistant.
type upstreamCall struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// fakeHass records requests and answers with a fixed status and body.
type fakeHass struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
}

func (f *fakeHass) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := upstreamCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &call.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeHass) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// newTestDispatcher wires a Dispatcher to a fake upstream through a real hass.Client.
func newTestDispatcher(t *testing.T, fake *fakeHass, opts ...Option) *Dispatcher {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := hass.New(hass.Config{
		BaseURL:       server.URL,
		SupervisorURL: server.URL + "/supervisor",
		Token:         "test-token",
		Timeout:       2 * time.Second,
		HTTPClient:    server.Client(),
	})
	if err != nil {
		t.Fatalf("hass.New() error = %v", err)
	}

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewDispatcher(client, opts...)
}

func request(id, method string, params map[string]any) *Request {
	return &Request{JSONRPC: Version, ID: json.RawMessage(id), Method: method, Params: params}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	fake := &fakeHass{body: `{}`}
	d := newTestDispatcher(t, fake)

	resp := d.Dispatch(context.Background(), request("1", "foo", nil))

	if resp.Result != nil {
		t.Errorf("Result = %s, want none", resp.Result)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
	if !strings.Contains(resp.Error.Message, "foo") {
		t.Errorf("Message = %q, should name the method", resp.Error.Message)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("upstream calls = %d, want 0", len(fake.Calls()))
	}
}

func TestDispatch_MissingParams(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		params      map[string]any
		wantMention []string
	}{
		{"call_service without service", MethodCallService, map[string]any{"domain": "light"}, []string{"service"}},
		{"call_service without both", MethodCallService, nil, []string{"domain", "service"}},
		{"call_service empty service", MethodCallService, map[string]any{"domain": "light", "service": ""}, []string{"service"}},
		{"get_state without entity", MethodGetState, map[string]any{}, []string{"entity_id"}},
		{"get_state null entity", MethodGetState, map[string]any{"entity_id": nil}, []string{"entity_id"}},
		{"get_history without entity", MethodGetHistory, map[string]any{"hours": 2}, []string{"entity_id"}},
		{"get_state numeric entity", MethodGetState, map[string]any{"entity_id": 5}, []string{"entity_id"}},
		{"call_service data not object", MethodCallService, map[string]any{"domain": "light", "service": "turn_on", "data": "x"}, []string{"data"}},
		{"get_history negative hours", MethodGetHistory, map[string]any{"entity_id": "sensor.t", "hours": -1}, []string{"hours"}},
		{"get_history zero hours", MethodGetHistory, map[string]any{"entity_id": "sensor.t", "hours": json.Number("0")}, []string{"hours"}},
		{"get_history string hours", MethodGetHistory, map[string]any{"entity_id": "sensor.t", "hours": "24"}, []string{"hours"}},
		{"get_state dot-dot entity", MethodGetState, map[string]any{"entity_id": ".."}, []string{"invalid parameter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeHass{body: `{}`}
			d := newTestDispatcher(t, fake)

			resp := d.Dispatch(context.Background(), request("9", tt.method, tt.params))

			if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
				t.Fatalf("Error = %+v, want code %d", resp.Error, CodeInvalidParams)
			}
			for _, want := range tt.wantMention {
				if !strings.Contains(resp.Error.Message, want) {
					t.Errorf("Message = %q, should mention %q", resp.Error.Message, want)
				}
			}
			if string(resp.ID) != "9" {
				t.Errorf("ID = %s, want 9", resp.ID)
			}
			if n := len(fake.Calls()); n != 0 {
				t.Errorf("upstream calls = %d, want 0", n)
			}
		})
	}
}

func TestDispatch_GetState(t *testing.T) {
	body := `{"entity_id":"light.living_room","state":"on"}`
	fake := &fakeHass{body: body}
	d := newTestDispatcher(t, fake)

	resp := d.Dispatch(context.Background(), request(`"req-1"`, MethodGetState, map[string]any{"entity_id": "light.living_room"}))

	if resp.Error != nil {
		t.Fatalf("Error = %+v", resp.Error)
	}
	if string(resp.Result) != body {
		t.Errorf("Result = %s, want %s", resp.Result, body)
	}
	if string(resp.ID) != `"req-1"` {
		t.Errorf("ID = %s", resp.ID)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("upstream calls = %d, want 1", len(calls))
	}
	if calls[0].Method != http.MethodGet || calls[0].Path != "/api/states/light.living_room" {
		t.Errorf("upstream call = %s %s", calls[0].Method, calls[0].Path)
	}
}

func TestDispatch_Routes(t *testing.T) {
	tests := []struct {
		method   string
		params   map[string]any
		wantVerb string
		wantPath string
	}{
		{MethodGetStates, nil, http.MethodGet, "/api/states"},
		{MethodGetStates, map[string]any{"entity_id": "switch.fan"}, http.MethodGet, "/api/states/switch.fan"},
		{MethodGetServices, nil, http.MethodGet, "/api/services"},
		{MethodGetConfig, nil, http.MethodGet, "/api/config"},
		{MethodGetAddonInfo, nil, http.MethodGet, "/supervisor/addons/self/info"},
		{MethodCallService, map[string]any{"domain": "light", "service": "turn_off"}, http.MethodPost, "/api/services/light/turn_off"},
	}

	for _, tt := range tests {
		t.Run(tt.wantPath, func(t *testing.T) {
			fake := &fakeHass{body: `[]`}
			d := newTestDispatcher(t, fake)

			resp := d.Dispatch(context.Background(), request("1", tt.method, tt.params))
			if resp.Error != nil {
				t.Fatalf("Error = %+v", resp.Error)
			}

			calls := fake.Calls()
			if len(calls) != 1 {
				t.Fatalf("upstream calls = %d, want 1", len(calls))
			}
			if calls[0].Method != tt.wantVerb || calls[0].Path != tt.wantPath {
				t.Errorf("upstream call = %s %s, want %s %s", calls[0].Method, calls[0].Path, tt.wantVerb, tt.wantPath)
			}
		})
	}
}

func TestDispatch_CallServiceBody(t *testing.T) {
	fake := &fakeHass{body: `[]`}
	d := newTestDispatcher(t, fake)

	data := map[string]any{"brightness": json.Number("128"), "entity_id": "light.other"}
	resp := d.Dispatch(context.Background(), request("1", MethodCallService, map[string]any{
		"domain":    "light",
		"service":   "turn_on",
		"entity_id": "light.kitchen",
		"data":      data,
	}))
	if resp.Error != nil {
		t.Fatalf("Error = %+v", resp.Error)
	}

	body := fake.Calls()[0].Body
	if body["entity_id"] != "light.kitchen" {
		t.Errorf("entity_id = %v, want light.kitchen", body["entity_id"])
	}
	if body["brightness"] != float64(128) {
		t.Errorf("brightness = %v, want 128", body["brightness"])
	}
	if data["entity_id"] != "light.other" {
		t.Error("caller's data map was modified")
	}
}

func TestDispatch_GetHistoryWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		params    map[string]any
		wantStart string
	}{
		{"default 24 hours", map[string]any{"entity_id": "sensor.t"}, "2026-05-09T12:00:00Z"},
		{"explicit hours", map[string]any{"entity_id": "sensor.t", "hours": json.Number("2")}, "2026-05-10T10:00:00Z"},
		{"fractional hours", map[string]any{"entity_id": "sensor.t", "hours": 0.5}, "2026-05-10T11:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeHass{body: `[[]]`}
			d := newTestDispatcher(t, fake, WithClock(func() time.Time { return now }))

			resp := d.Dispatch(context.Background(), request("1", MethodGetHistory, tt.params))
			if resp.Error != nil {
				t.Fatalf("Error = %+v", resp.Error)
			}

			calls := fake.Calls()
			if len(calls) != 1 {
				t.Fatalf("upstream calls = %d, want 1", len(calls))
			}
			if want := "/api/history/period/" + tt.wantStart; calls[0].Path != want {
				t.Errorf("path = %q, want %q", calls[0].Path, want)
			}
			if calls[0].Query != "filter_entity_id=sensor.t" {
				t.Errorf("query = %q", calls[0].Query)
			}
		})
	}
}

func TestDispatch_UpstreamError(t *testing.T) {
	fake := &fakeHass{status: http.StatusServiceUnavailable, body: `{"message":"starting"}`}
	d := newTestDispatcher(t, fake)

	resp := d.Dispatch(context.Background(), request("5", MethodGetConfig, nil))

	if resp.Error == nil || resp.Error.Code != CodeUpstreamError {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeUpstreamError)
	}
	if !strings.Contains(resp.Error.Message, "503") {
		t.Errorf("Message = %q, should carry the status", resp.Error.Message)
	}
	if data, ok := resp.Error.Data.(UpstreamErrorData); !ok || data.Status != http.StatusServiceUnavailable {
		t.Errorf("Data = %#v, want status 503", resp.Error.Data)
	}
	if string(resp.ID) != "5" {
		t.Errorf("ID = %s, want 5", resp.ID)
	}

	// The dispatcher keeps serving after a failure.
	fake.mu.Lock()
	fake.status, fake.body = http.StatusOK, `{"version":"2026.5.0"}`
	fake.mu.Unlock()

	resp = d.Dispatch(context.Background(), request("6", MethodGetConfig, nil))
	if resp.Error != nil {
		t.Fatalf("second call Error = %+v", resp.Error)
	}
}

// stubUpstream lets tests inject arbitrary behaviour.
type stubUpstream struct {
	Upstream
	getStates func(ctx context.Context) (json.RawMessage, error)
}

func (s stubUpstream) GetStates(ctx context.Context) (json.RawMessage, error) {
	return s.getStates(ctx)
}

func TestDispatch_PlainErrorIsUpstreamFailure(t *testing.T) {
	d := NewDispatcher(stubUpstream{getStates: func(context.Context) (json.RawMessage, error) {
		return nil, errors.New("connection refused")
	}}, WithLogger(quietLogger()))

	resp := d.Dispatch(context.Background(), request("1", MethodGetStates, nil))
	if resp.Error == nil || resp.Error.Code != CodeUpstreamError {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeUpstreamError)
	}
	if resp.Error.Data != nil {
		t.Errorf("Data = %v, want nil without an HTTP status", resp.Error.Data)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(stubUpstream{getStates: func(context.Context) (json.RawMessage, error) {
		panic("boom")
	}}, WithLogger(quietLogger()), WithObserver(obs))

	resp := d.Dispatch(context.Background(), request(`"p"`, MethodGetStates, nil))
	if resp.Error == nil || resp.Error.Code != CodeInternalError {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeInternalError)
	}
	if string(resp.ID) != `"p"` {
		t.Errorf("ID = %s", resp.ID)
	}
	if calls := obs.Calls(); len(calls) != 1 || calls[0].Outcome != OutcomeInternalError {
		t.Errorf("observed = %+v, want one internal_error", calls)
	}
}

func TestDispatch_NilRequest(t *testing.T) {
	d := NewDispatcher(stubUpstream{}, WithLogger(quietLogger()))
	resp := d.Dispatch(context.Background(), nil)
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("resp = %+v, want invalid request", resp)
	}
}

// TestDispatch_IDEchoed checks every outcome echoes the request id.
func TestDispatch_IDEchoed(t *testing.T) {
	fake := &fakeHass{body: `{}`}
	d := newTestDispatcher(t, fake)

	ids := []string{`1`, `"abc"`, `null`, ``, `12345678901234567890`}
	methods := []*Request{
		request("", "unknown", nil),
		request("", MethodGetState, nil),
		request("", MethodGetConfig, nil),
	}

	for _, id := range ids {
		for _, tmpl := range methods {
			req := *tmpl
			if id != "" {
				req.ID = json.RawMessage(id)
			} else {
				req.ID = nil
			}
			resp := d.Dispatch(context.Background(), &req)
			if string(resp.ID) != string(req.ID) {
				t.Errorf("%s: ID = %s, want %s", req.Method, resp.ID, req.ID)
			}
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []Call
}

func (o *recordingObserver) ObserveCall(_ context.Context, call Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *recordingObserver) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.calls)
}

func TestDispatch_Observer(t *testing.T) {
	fake := &fakeHass{status: http.StatusNotFound, body: `{"message":"Entity not found."}`}
	obs := &recordingObserver{}
	d := newTestDispatcher(t, fake, WithObserver(obs))

	ctx := ContextWithRequestID(context.Background(), "req-42")
	d.Dispatch(ctx, request("1", MethodGetState, map[string]any{"entity_id": "light.gone"}))
	d.Dispatch(ctx, request("2", "nope", nil))

	calls := obs.Calls()
	if len(calls) != 2 {
		t.Fatalf("observed %d calls, want 2", len(calls))
	}
	if calls[0].Outcome != OutcomeUpstreamError || calls[0].UpstreamStatus != http.StatusNotFound {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[0].RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", calls[0].RequestID)
	}
	if calls[1].Outcome != OutcomeProtocolError || calls[1].ErrorCode != CodeMethodNotFound {
		t.Errorf("second call = %+v", calls[1])
	}
}

func TestMethods(t *testing.T) {
	d := NewDispatcher(stubUpstream{}, WithLogger(quietLogger()))

	want := []string{
		MethodCallService, MethodGetAddonInfo, MethodGetConfig, MethodGetHistory,
		MethodGetServices, MethodGetState, MethodGetStates,
	}
	if got := d.Methods(); !slices.Equal(got, want) {
		t.Errorf("Methods() = %v, want %v", got, want)
	}
	if !d.Has(MethodGetState) || d.Has("set_state") {
		t.Error("Has() disagrees with the method table")
	}

	info := d.Info("1.2.3")
	if info.Name != ServerName || info.Protocol != "mcp" || info.Version != "1.2.3" {
		t.Errorf("Info() = %+v", info)
	}
	if !slices.Equal(info.Capabilities, want) {
		t.Errorf("Capabilities = %v", info.Capabilities)
	}
}

// quietLogger drops every log entry.
func quietLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{}, "test")
}
