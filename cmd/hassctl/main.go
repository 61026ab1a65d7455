// hassctl calls a running hassbridge over HTTP.
//
// Usage: hassctl [-url URL] [-timeout D] health|info|<method> [key=value ...]
//
// Values that parse as JSON are sent as JSON (numbers, objects, booleans);
// anything else is sent as a string. Results are printed as indented JSON.
//
// Exit codes:
//
//	0 = success
//	1 = call failed
//	2 = usage error
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nerrad567/hassbridge/internal/rpc"
	"github.com/nerrad567/hassbridge/internal/rpcclient"
)

const defaultURL = "http://127.0.0.1:8099"

const usageText = `hassctl - call a running hassbridge

Usage:
  hassctl [flags] health
  hassctl [flags] info
  hassctl [flags] <method> [key=value ...]

Methods:
  get_states [entity_id=ID]
  get_state entity_id=ID
  call_service domain=D service=S [entity_id=ID] [data={...}]
  get_services
  get_config
  get_addon_info
  get_history entity_id=ID [hours=N]

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the entry point, separated for testability. Returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hassctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("HASSBRIDGE_URL", defaultURL), "bridge base URL (env HASSBRIDGE_URL)")
	timeout := fs.Duration("timeout", rpcclient.DefaultTimeout, "per-call timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	command := fs.Arg(0)
	params, err := parseParams(fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "hassctl: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := rpcclient.New(*baseURL, rpcclient.WithTimeout(*timeout))

	var out any
	switch command {
	case "health":
		out, err = client.Health(ctx)
	case "info":
		out, err = client.Info(ctx)
	default:
		out, err = client.Call(ctx, command, params)
	}
	if err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(stderr, "hassctl: %s failed: [%d] %s\n", command, rpcErr.Code, rpcErr.Message)
		} else {
			fmt.Fprintf(stderr, "hassctl: %v\n", err)
		}
		return 1
	}

	if err := printJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "hassctl: %v\n", err)
		return 1
	}
	return 0
}

// parseParams turns key=value arguments into a params object.
func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

// parseValue decodes raw as JSON when it is a number, bool, object or array.
// Everything else, including bare words like light.kitchen, is a string.
func parseValue(raw string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	if _, isString := v.(string); isString || v == nil {
		return raw
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	var data []byte
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("formatting result: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = json.MarshalIndent(v, "", "  "); err != nil {
			return fmt.Errorf("formatting result: %w", err)
		}
	}
	_, err := fmt.Fprintln(w, string(data))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
