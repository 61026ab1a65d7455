package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/hassbridge/internal/rpc"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"light.kitchen", "light.kitchen"},
		{"12", json.Number("12")},
		{"1.5", json.Number("1.5")},
		{"true", true},
		{`"quoted"`, `"quoted"`},
		{"null", "null"},
		{"12abc", "12abc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := parseValue(tt.raw); got != tt.want {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}

	obj, ok := parseValue(`{"brightness":120}`).(map[string]any)
	if !ok || obj["brightness"] != json.Number("120") {
		t.Errorf("object value = %#v", obj)
	}
}

func TestParseParams_Invalid(t *testing.T) {
	for _, arg := range []string{"entity_id", "=x"} {
		if _, err := parseParams([]string{arg}); err == nil {
			t.Errorf("parseParams(%q) should fail", arg)
		}
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("stderr = %q, want usage text", stderr.String())
	}
}

func fakeBridge(t *testing.T) (*httptest.Server, *[]rpc.Request) {
	t.Helper()
	var seen []rpc.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet && r.URL.Path == "/health" {
			io.WriteString(w, `{"status":"ok","service":"hassbridge","version":"dev"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		req, err := rpc.DecodeRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen = append(seen, *req)
		if req.Method == "nope" {
			json.NewEncoder(w).Encode(rpc.NewError(req.ID, rpc.CodeMethodNotFound, "unknown method: nope", nil))
			return
		}
		json.NewEncoder(w).Encode(rpc.NewResult(req.ID, json.RawMessage(`{"state":"on"}`)))
	}))
	t.Cleanup(ts.Close)
	return ts, &seen
}

func TestRun_Method(t *testing.T) {
	ts, seen := fakeBridge(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-url", ts.URL, "call_service", "domain=light", "service=turn_on", `data={"brightness":120}`}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}

	if want := "{\n  \"state\": \"on\"\n}\n"; stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if len(*seen) != 1 {
		t.Fatalf("requests = %d, want 1", len(*seen))
	}
	req := (*seen)[0]
	if req.Method != "call_service" || req.Params["domain"] != "light" {
		t.Errorf("request = %+v", req)
	}
	if _, ok := req.Params["data"].(map[string]any); !ok {
		t.Errorf("data = %#v, want object", req.Params["data"])
	}
}

func TestRun_Health(t *testing.T) {
	ts, _ := fakeBridge(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-url", ts.URL, "health"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_ErrorReply(t *testing.T) {
	ts, _ := fakeBridge(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-url", ts.URL, "nope"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "-32601") {
		t.Errorf("stderr = %q, want error code", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}
