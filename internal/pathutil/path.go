package pathutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup returns the value addressed by path inside doc.
// Array elements are addressed by their decimal index.
func Lookup(doc any, path []string) (any, bool) {
	cur := doc
	for _, tok := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Delete returns a copy of doc with the value at path removed. Containers
// along the path are copied; everything else is shared with doc. Deleting
// a missing path returns doc unchanged. Deleting an array element shifts the
// following elements down.
func Delete(doc any, path []string) any {
	if len(path) == 0 {
		return doc
	}
	tok := path[0]
	switch node := doc.(type) {
	case map[string]any:
		child, ok := node[tok]
		if !ok {
			return doc
		}
		out := make(map[string]any, len(node))
		for k, v := range node {
			out[k] = v
		}
		if len(path) == 1 {
			delete(out, tok)
		} else {
			out[tok] = Delete(child, path[1:])
		}
		return out
	case []any:
		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 || i >= len(node) {
			return doc
		}
		if len(path) == 1 {
			out := make([]any, 0, len(node)-1)
			out = append(out, node[:i]...)
			return append(out, node[i+1:]...)
		}
		out := make([]any, len(node))
		copy(out, node)
		out[i] = Delete(node[i], path[1:])
		return out
	default:
		return doc
	}
}

// Clone deep-copies a decoded JSON value.
func Clone(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// SplitPointer converts a local JSON pointer ("#/a/b~1c") into tokens
// ("a", "b/c").
func SplitPointer(ref string) ([]string, error) {
	ptr, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return nil, fmt.Errorf("pathutil: only local references are supported: %q", ref)
	}
	if ptr == "" {
		return nil, nil
	}
	if ptr[0] != '/' {
		return nil, fmt.Errorf("pathutil: invalid JSON pointer %q", ref)
	}
	tokens := strings.Split(ptr[1:], "/")
	for i, tok := range tokens {
		tokens[i] = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
	}
	return tokens, nil
}
