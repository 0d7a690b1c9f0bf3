package model

import (
	json "github.com/alpkeskin/gotoon"
)

// EncodeMeta serializes a memory's meta map the way the Store persists
// it: a JSON object, or "{}" for nil/empty.
func EncodeMeta(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMeta parses a persisted meta JSON document back into a map,
// tolerating empty/invalid input by returning an empty map — a
// corrupt meta blob must never fail a read path.
func DecodeMeta(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	if out == nil {
		return map[string]any{}
	}
	return out
}

// CloneMeta returns a shallow copy, safe to mutate without aliasing
// the caller's map.
func CloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// StringFromAny coerces common JSON-decoded shapes into a string,
// mirroring the tolerant decoding the teacher applies to metadata
// fields sourced from heterogeneous callers.
func StringFromAny(v any, fallback string) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return fallback
	default:
		return fallback
	}
}

// TagsEqual reports whether two tag sets are equal, order-insensitive,
// per §3's "tags — set of short labels (order-insensitive)".
func TagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, t := range a {
		seen[t]++
	}
	for _, t := range b {
		seen[t]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// HasTag reports whether tags contains tag.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
