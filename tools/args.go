package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errMissing = errors.New("missing")

// intArg reads an integral argument. Models deliver numbers as float64,
// json.Number or occasionally quoted strings; fractional values are rejected.
func intArg(input map[string]any, key string) (int64, error) {
	v, ok := input[key]
	if !ok || v == nil {
		return 0, errMissing
	}
	f, err := number(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%s is out of range", key)
	}
	return int64(f), nil
}

func number(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

// listArg reads an array argument, decoding it first when the model sent the
// array as a JSON string.
func listArg(input map[string]any, key string) ([]any, error) {
	v, ok := input[key]
	if !ok || v == nil {
		return nil, errMissing
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, nil
	case string:
		var out []any
		if err := json.Unmarshal([]byte(l), &out); err != nil {
			return nil, fmt.Errorf("%s must be an array", key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array", key)
	}
}
