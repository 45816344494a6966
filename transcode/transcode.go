// Package transcode rewrites OpenAPI schema objects into plain JSON Schema.
//
// OpenAPI 3.0 schemas differ from JSON Schema in a few places that matter
// for validation: "nullable" instead of a "null" type, and annotation
// keywords the schema engines either reject or misread. Every function in
// this package returns a new tree and leaves its input untouched.
package transcode

import (
	"sort"
	"strings"
)

// openAPIOnly lists keywords that carry no validation meaning and are
// dropped before a schema reaches an engine.
var openAPIOnly = map[string]bool{
	"discriminator": true,
	"xml":           true,
	"externalDocs":  true,
	"example":       true,
	"deprecated":    true,
	"readOnly":      true,
	"writeOnly":     true,
}

// schemaMaps are keywords whose value is a map of name to subschema.
var schemaMaps = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"definitions":       true,
	"$defs":             true,
	"dependentSchemas":  true,
}

// schemaLists are keywords whose value is a list of subschemas.
var schemaLists = map[string]bool{
	"allOf":       true,
	"anyOf":       true,
	"oneOf":       true,
	"prefixItems": true,
}

// Transcode converts an OpenAPI schema into JSON Schema: allOf branches are
// folded into their parent, nullable becomes a "null" type member, and
// OpenAPI-only annotations are removed.
func Transcode(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return transcode(schema)
}

func transcode(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if openAPIOnly[k] || strings.HasPrefix(k, "x-") {
			continue
		}
		out[k] = walk(k, v, transcode)
	}

	if branches, ok := out["allOf"].([]any); ok {
		delete(out, "allOf")
		merged := map[string]any{}
		for _, b := range branches {
			if bm, ok := b.(map[string]any); ok {
				merged = Merge(merged, bm)
			}
		}
		out = Merge(merged, out)
	}

	if nullable, _ := out["nullable"].(bool); nullable {
		out["type"] = withNull(out["type"])
		if enum, ok := out["enum"].([]any); ok && !containsNil(enum) {
			out["enum"] = append(append([]any{}, enum...), nil)
		}
	}
	delete(out, "nullable")
	return out
}

// walk applies fn to every subschema held by keyword k.
func walk(k string, v any, fn func(map[string]any) map[string]any) any {
	switch {
	case schemaMaps[k]:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make(map[string]any, len(m))
		for _, name := range names {
			if sm, ok := m[name].(map[string]any); ok {
				out[name] = fn(sm)
			} else {
				out[name] = m[name]
			}
		}
		return out
	case schemaLists[k]:
		list, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(list))
		for i, sub := range list {
			if sm, ok := sub.(map[string]any); ok {
				out[i] = fn(sm)
			} else {
				out[i] = sub
			}
		}
		return out
	case k == "items":
		// OpenAPI allows a single schema; tuple form is kept for JSON Schema drafts.
		if list, ok := v.([]any); ok {
			return walk("allOf", list, fn)
		}
		fallthrough
	case k == "additionalProperties", k == "additionalItems", k == "not",
		k == "propertyNames", k == "contains", k == "if", k == "then", k == "else",
		k == "unevaluatedProperties", k == "unevaluatedItems":
		if sm, ok := v.(map[string]any); ok {
			return fn(sm)
		}
		return v
	default:
		return v
	}
}

func withNull(t any) any {
	switch tt := t.(type) {
	case string:
		if tt == "null" {
			return tt
		}
		return []any{tt, "null"}
	case []any:
		for _, member := range tt {
			if member == "null" {
				return tt
			}
		}
		return append(append([]any{}, tt...), "null")
	default:
		// untyped schemas already accept null
		return t
	}
}

func containsNil(list []any) bool {
	for _, v := range list {
		if v == nil {
			return true
		}
	}
	return false
}

// Merge deep-merges overlay onto base and returns the result. Nested maps
// merge recursively, lists are concatenated with duplicate scalars dropped,
// and any other overlay value replaces the base value.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		switch ov := v.(type) {
		case map[string]any:
			if em, ok := existing.(map[string]any); ok {
				out[k] = Merge(em, ov)
				continue
			}
		case []any:
			if el, ok := existing.([]any); ok {
				out[k] = union(el, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func union(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[any]bool, len(a)+len(b))
	for _, list := range [][]any{a, b} {
		for _, v := range list {
			switch v.(type) {
			case map[string]any, []any:
				out = append(out, v)
				continue
			}
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ForbidAdditional sets "additionalProperties": false on every subschema
// that describes an object, replacing any existing setting.
func ForbidAdditional(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return forbid(schema)
}

func forbid(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		if k == "additionalProperties" {
			continue
		}
		out[k] = walk(k, v, forbid)
	}
	if isObject(out) {
		out["additionalProperties"] = false
	} else if ap, ok := schema["additionalProperties"]; ok {
		out["additionalProperties"] = ap
	}
	return out
}

func isObject(schema map[string]any) bool {
	if _, ok := schema["properties"]; ok {
		return true
	}
	switch t := schema["type"].(type) {
	case string:
		return t == "object"
	case []any:
		for _, member := range t {
			if member == "object" {
				return true
			}
		}
	}
	return false
}

// Pair is a (type, format) combination declared somewhere in a schema.
type Pair struct {
	Type   string
	Format string
}

// native lists string formats every supported engine checks on its own.
var native = map[string]bool{
	"date":                  true,
	"date-time":             true,
	"email":                 true,
	"idn-email":             true,
	"hostname":              true,
	"idn-hostname":          true,
	"ipv4":                  true,
	"ipv6":                  true,
	"json-pointer":          true,
	"regex":                 true,
	"relative-json-pointer": true,
	"time":                  true,
	"uri":                   true,
	"uri-reference":         true,
	"uri-template":          true,
	"iri":                   true,
	"iri-reference":         true,
}

// IsNative reports whether a string format is checked by the engines
// without registration.
func IsNative(format string) bool { return native[format] }

// Formats returns every distinct (type, format) pair in schema that needs a
// registered validator, in first-seen order. Native string formats are
// skipped.
func Formats(schema map[string]any) []Pair {
	var pairs []Pair
	seen := map[Pair]bool{}
	collectFormats(schema, &pairs, seen)
	return pairs
}

func collectFormats(schema map[string]any, pairs *[]Pair, seen map[Pair]bool) {
	if schema == nil {
		return
	}
	if format, ok := schema["format"].(string); ok && format != "" {
		for _, typ := range typeNames(schema["type"]) {
			if typ == "string" && native[format] {
				continue
			}
			p := Pair{Type: typ, Format: format}
			if !seen[p] {
				seen[p] = true
				*pairs = append(*pairs, p)
			}
		}
	}

	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		walk(k, schema[k], func(sub map[string]any) map[string]any {
			collectFormats(sub, pairs, seen)
			return sub
		})
	}
}

func typeNames(t any) []string {
	switch tt := t.(type) {
	case string:
		return []string{tt}
	case []any:
		var out []string
		for _, member := range tt {
			if s, ok := member.(string); ok && s != "null" {
				out = append(out, s)
			}
		}
		return out
	default:
		// format without a type: treat as a string refinement
		return []string{"string"}
	}
}
