// Package mapper parses heterogeneous LLM provider responses into canonical
// fields. A Response is either already-Structured (a decoded object) or raw
// Text that still needs parsing; Walk extracts the usage counters and the
// first choice's content from whichever form it got.
package mapper

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the sum type `Structured(obj) | Text(s)`.
type Response struct {
	Structured map[string]any
	Text       string
	IsText     bool
}

// Mapped holds the canonical fields extracted from a Response.
type Mapped struct {
	AnalysedReview *string
	InputTokens    *int
	OutputTokens   *int
	TotalTokens    *int
	AnalysisOutput string // always populated: original string or serialized object
}

// ParseRaw builds a Response from a raw provider payload, which may already
// be decoded JSON (map[string]any) or a string that itself contains
// JSON-encoded or loosely quoted content.
func ParseRaw(raw any) Response {
	switch v := raw.(type) {
	case map[string]any:
		return Response{Structured: v}
	case string:
		return Response{Text: v, IsText: true}
	default:
		// Re-encode anything else (slices, numbers) as text for the fallback walk.
		b, err := json.Marshal(v)
		if err != nil {
			return Response{Text: fmt.Sprintf("%v", v), IsText: true}
		}
		return Response{Text: string(b), IsText: true}
	}
}

// Walk maps a Response to canonical fields. It tries, in order: a direct
// structured walk, a JSON decode of Text, a scan for the first brace-
// delimited object substring that parses as JSON. If nothing parses, the
// original text is retained verbatim as AnalysisOutput with every other
// field left nil, so a mapping failure never loses the raw response.
func (r Response) Walk() Mapped {
	obj := r.Structured
	if obj == nil && r.IsText {
		obj = parseLoosely(r.Text)
	}

	m := Mapped{}
	if obj != nil {
		if usage, ok := findKey(obj, "usage").(map[string]any); ok {
			m.InputTokens = toIntPtr(usage["prompt_tokens"])
			if v := toIntPtr(usage["completion_tokens"]); v != nil {
				m.OutputTokens = v
			} else {
				m.OutputTokens = toIntPtr(usage["output_tokens"])
			}
			m.TotalTokens = toIntPtr(usage["total_tokens"])
		}

		if choices, ok := findKey(obj, "choices").([]any); ok && len(choices) > 0 {
			if first, ok := choices[0].(map[string]any); ok {
				var msg map[string]any
				if mv, ok := first["message"].(map[string]any); ok {
					msg = mv
				} else if mv, ok := first["msg"].(map[string]any); ok {
					msg = mv
				}
				if msg != nil {
					m.AnalysedReview = toStringPtr(firstNonNil(msg["content"], msg["text"]))
				} else {
					m.AnalysedReview = toStringPtr(firstNonNil(first["text"], first["content"]))
				}
			}
		}
	}

	if obj != nil {
		if b, err := json.Marshal(obj); err == nil {
			m.AnalysisOutput = string(b)
		} else {
			m.AnalysisOutput = r.Text
		}
	} else {
		m.AnalysisOutput = r.Text
	}

	return m
}

// parseLoosely tries, in order: a direct JSON decode of s, then a scan for
// the first "{"-prefixed substring that decodes as a JSON object. The scan
// decodes a single value and ignores whatever trails it, so an object
// embedded in surrounding prose still parses.
func parseLoosely(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}

	start := strings.IndexByte(s, '{')
	for start != -1 {
		var candidate map[string]any
		if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&candidate); err == nil {
			return candidate
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += 1 + next
	}
	return nil
}

// findKey recursively searches nested maps/slices for the first occurrence
// of key.
func findKey(obj any, key string) any {
	switch v := obj.(type) {
	case map[string]any:
		if val, ok := v[key]; ok {
			return val
		}
		for _, val := range v {
			if res := findKey(val, key); res != nil {
				return res
			}
		}
	case []any:
		for _, item := range v {
			if res := findKey(item, key); res != nil {
				return res
			}
		}
	}
	return nil
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func toIntPtr(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	}
	return nil
}

func toStringPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
