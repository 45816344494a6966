package httpvalidator

import (
	"maps"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasguard/openapi"
)

// Parameter styles.
const (
	styleForm           = "form"
	styleLabel          = "label"
	styleMatrix         = "matrix"
	styleSpaceDelimited = "spaceDelimited"
	stylePipeDelimited  = "pipeDelimited"
)

// parseQuery decodes a raw query string. Bracketed keys build nested
// values ("filter[ids][]=1" becomes {"filter": {"ids": ["1"]}}), a repeated
// plain key becomes a []string, and objects keyed 0..n-1 become lists.
// The returned names keep first-appearance order.
func parseQuery(raw string) (map[string]any, []string) {
	out := make(map[string]any)
	var order []string
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		name, segs := splitBrackets(key)
		if name == "" {
			continue
		}
		if _, seen := out[name]; !seen {
			order = append(order, name)
		}
		if len(segs) == 0 {
			switch cur := out[name].(type) {
			case string:
				out[name] = []string{cur, val}
			case []string:
				out[name] = append(cur, val)
			default:
				out[name] = val
			}
			continue
		}
		out[name] = assign(out[name], segs, val)
	}
	for name, v := range out {
		out[name] = listify(v)
	}
	return out, order
}

// splitBrackets splits "a[b][]" into "a" and ["b", ""].
func splitBrackets(key string) (string, []string) {
	i := strings.IndexByte(key, '[')
	if i <= 0 || !strings.HasSuffix(key, "]") {
		return key, nil
	}
	name, rest := key[:i], key[i:]
	var segs []string
	for rest != "" {
		if rest[0] != '[' {
			return key, nil
		}
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			return key, nil
		}
		segs = append(segs, rest[1:j])
		rest = rest[j+1:]
	}
	return name, segs
}

func assign(cur any, segs []string, val string) any {
	seg := segs[0]
	if seg == "" {
		list, _ := cur.([]any)
		if len(segs) == 1 {
			return append(list, val)
		}
		return append(list, assign(nil, segs[1:], val))
	}
	m, ok := cur.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	if len(segs) == 1 {
		m[seg] = val
	} else {
		m[seg] = assign(m[seg], segs[1:], val)
	}
	return m
}

// listify turns maps keyed exactly "0".."n-1" into lists, recursively.
func listify(v any) any {
	switch node := v.(type) {
	case []any:
		for i, e := range node {
			node[i] = listify(e)
		}
		return node
	case map[string]any:
		for k, e := range node {
			node[k] = listify(e)
		}
		if len(node) == 0 {
			return node
		}
		list := make([]any, len(node))
		for k, e := range node {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= len(node) || strconv.Itoa(i) != k {
				return node
			}
			list[i] = e
		}
		return list
	default:
		return v
	}
}

// encodeQuery renders a query map back into a raw query string, with
// nested values in bracket notation.
func encodeQuery(query map[string]any, order []string) string {
	names := append([]string(nil), order...)
	var extra []string
	for name := range query {
		if !slices.Contains(order, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	var b strings.Builder
	for _, name := range names {
		v, ok := query[name]
		if !ok {
			continue
		}
		writeQueryValue(&b, url.QueryEscape(name), v)
	}
	return b.String()
}

func writeQueryValue(b *strings.Builder, key string, v any) {
	switch node := v.(type) {
	case []string:
		for _, s := range node {
			writeQueryPair(b, key, s)
		}
	case []any:
		for _, e := range node {
			writeQueryValue(b, key+"%5B%5D", e)
		}
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeQueryValue(b, key+"%5B"+url.QueryEscape(k)+"%5D", node[k])
		}
	case map[string]string:
		writeQueryValue(b, key, stringMap(node))
	default:
		writeQueryPair(b, key, scalarString(v))
	}
}

func writeQueryPair(b *strings.Builder, key, val string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(val))
}

// deserializeQuery applies the declared style of every array- or
// object-typed query parameter. The input map is not modified; a copy is
// returned when any entry changes.
func deserializeQuery(query map[string]any, params []*openapi.Parameter) map[string]any {
	out, copied := query, false
	for _, p := range params {
		if !isStructured(p.Schema) {
			continue
		}
		raw, ok := query[p.Name].(string)
		if !ok {
			continue
		}
		if !copied {
			out, copied = maps.Clone(query), true
		}
		out[p.Name] = styleQuery(p.Style, p.Explode, raw, p.Schema)
	}
	return out
}

// styleQuery splits a query value according to style. Unknown styles and
// exploded form values pass through.
func styleQuery(style string, explode bool, value string, schema map[string]any) any {
	switch style {
	case styleForm:
		if explode {
			if schemaType(schema) == "array" {
				return []string{value}
			}
			return value
		}
		parts := strings.Split(value, ",")
		if schemaType(schema) == "object" {
			return pairs(parts)
		}
		return parts
	case styleSpaceDelimited:
		return strings.Split(value, " ")
	case stylePipeDelimited:
		return strings.Split(value, "|")
	default:
		return value
	}
}

// deserializePath converts matched path values. Structured parameters are
// split by their style; label and matrix prefixes are removed from
// scalars.
func deserializePath(values map[string]string, params []*openapi.Parameter) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		out[name] = v
	}
	for _, p := range params {
		raw, ok := values[p.Name]
		if !ok {
			continue
		}
		out[p.Name] = stylePath(p.Name, p.Style, p.Explode, raw, p.Schema)
	}
	return out
}

func stylePath(name, style string, explode bool, value string, schema map[string]any) any {
	typ := schemaType(schema)
	switch style {
	case styleLabel:
		value = strings.TrimPrefix(value, ".")
		sep := ","
		if explode {
			sep = "."
		}
		return splitStructured(value, sep, explode, typ)
	case styleMatrix:
		prefix := ";" + name + "="
		if typ == "array" && explode {
			var items []string
			for _, part := range strings.Split(strings.TrimPrefix(value, ";"), ";") {
				items = append(items, strings.TrimPrefix(part, name+"="))
			}
			return items
		}
		if typ == "object" && explode {
			return splitStructured(strings.TrimPrefix(value, ";"), ";", true, typ)
		}
		return splitStructured(strings.TrimPrefix(value, prefix), ",", false, typ)
	default:
		return splitStructured(value, ",", explode, typ)
	}
}

// splitStructured splits value for array and object types and returns
// scalars unchanged. Exploded objects use key=value items.
func splitStructured(value, sep string, explode bool, typ string) any {
	switch typ {
	case "array":
		if value == "" {
			return []string{}
		}
		return strings.Split(value, sep)
	case "object":
		parts := strings.Split(value, sep)
		if !explode {
			return pairs(parts)
		}
		obj := make(map[string]any, len(parts))
		for _, part := range parts {
			k, v, _ := strings.Cut(part, "=")
			if k != "" {
				obj[k] = v
			}
		}
		return obj
	default:
		return value
	}
}

// pairs reads alternating key,value items.
func pairs(parts []string) map[string]any {
	obj := make(map[string]any, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		obj[parts[i]] = parts[i+1]
	}
	return obj
}

// headerValue reads a header parameter. Structured headers use the simple
// style.
func headerValue(values []string, p *openapi.Parameter) any {
	raw := strings.Join(values, ",")
	return splitStructured(raw, ",", p.Explode, schemaType(p.Schema))
}

func isStructured(schema map[string]any) bool {
	switch schemaType(schema) {
	case "array", "object":
		return true
	}
	return false
}

// schemaType returns the first non-null declared type. Schemas with
// properties and no type are objects.
func schemaType(schema map[string]any) string {
	switch t := schema["type"].(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	}
	if _, ok := schema["properties"]; ok {
		return "object"
	}
	if _, ok := schema["items"]; ok {
		return "array"
	}
	return ""
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
