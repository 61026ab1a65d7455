package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// maxHours keeps now-hours within time.Duration range.
const maxHours = float64(math.MaxInt64) / float64(time.Hour)

func missingParams(names []string) *Error {
	if len(names) == 1 {
		return &Error{Code: CodeInvalidParams, Message: "missing required parameter: " + names[0]}
	}
	return &Error{Code: CodeInvalidParams, Message: "missing required parameters: " + strings.Join(names, ", ")}
}

func invalidParam(name, want string) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid parameter %s: %s", name, want)}
}

// requiredStrings returns the named params in order. Absent, null and empty
// values are reported together as missing.
func requiredStrings(p map[string]any, names ...string) ([]string, *Error) {
	values := make([]string, len(names))
	var missing []string

	for i, name := range names {
		v, ok := p[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, invalidParam(name, "must be a string")
		}
		if strings.TrimSpace(s) == "" {
			missing = append(missing, name)
			continue
		}
		values[i] = s
	}

	if len(missing) > 0 {
		return nil, missingParams(missing)
	}
	return values, nil
}

// optionalString returns "" when the param is absent, null or empty.
func optionalString(p map[string]any, name string) (string, *Error) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParam(name, "must be a string")
	}
	return strings.TrimSpace(s), nil
}

func optionalObject(p map[string]any, name string) (map[string]any, *Error) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalidParam(name, "must be an object")
	}
	return obj, nil
}

// optionalPositiveNumber accepts json.Number (DecodeRequest) as well as the
// native numeric types in-process callers pass.
func optionalPositiveNumber(p map[string]any, name string, def float64) (float64, *Error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}

	var n float64
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, invalidParam(name, "must be a number")
		}
		n = f
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	default:
		return 0, invalidParam(name, "must be a number")
	}

	if math.IsNaN(n) || n <= 0 || n > maxHours {
		return 0, invalidParam(name, "must be a positive number")
	}
	return n, nil
}
