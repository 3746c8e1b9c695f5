package types

import (
	"encoding/json"
	"fmt"
)

// State is a game or player state value, or a message body: one of
// bool, float64, string, nil, []any or map[string]any, nested freely.
type State = any

// MaxStateSize bounds an encoded state or message, in bytes.
const MaxStateSize = 1_000_000

// NormalizeState rewrites decoded values into the canonical State shapes:
// every number becomes float64 and every map becomes map[string]any.
func NormalizeState(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = NormalizeState(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = NormalizeState(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = NormalizeState(e)
		}
		return out
	default:
		return t
	}
}

// CloneState deep-copies lists and maps so callers never share them.
func CloneState(v State) State {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneState(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneState(e)
		}
		return out
	default:
		return t
	}
}

// ExceedsStateSize reports whether v is larger than MaxStateSize once
// encoded as JSON.
func ExceedsStateSize(v State) bool {
	if s, ok := v.(string); ok {
		return len(s) > MaxStateSize
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return len(b) > MaxStateSize
}
