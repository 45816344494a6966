package httpvalidator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasguard/engine"
	"github.com/erraggy/oasguard/internal/pathutil"
)

// normalize flattens an engine failure tree into records. Leaf names are
// the leaf's instance path dotted onto name. Records are ordered depth
// first over the instance: at each object, missing required properties
// come first, then failures under each present key in the order of order
// (or lexically when order does not know the key), then array elements by
// index. Failures at the same location keep engine order.
func normalize(node *engine.Node, name, location string, order *pathutil.KeyOrder) []ValidationError {
	if node == nil {
		return nil
	}
	var out []ValidationError
	for _, leaf := range node.Leaves() {
		out = append(out, leafErrors(leaf, name, location)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return comparePaths(out[i], out[j], order) < 0
	})
	return out
}

func leafErrors(leaf *engine.Node, name, location string) []ValidationError {
	switch leaf.Keyword {
	case engine.KeywordRequired:
		missing := stringList(leaf.Args[engine.ArgMissing])
		out := make([]ValidationError, 0, len(missing))
		for _, m := range missing {
			path := childPath(leaf.Path, m)
			out = append(out, ValidationError{
				Name:     dotted(name, path),
				Code:     CodeRequired,
				Location: location,
				Message:  leaf.Message,
				path:     path,
				missing:  true,
			})
		}
		return out

	case engine.KeywordAdditionalProperties:
		props := stringList(leaf.Args[engine.ArgProperties])
		obj, _ := leaf.Value.(map[string]any)
		out := make([]ValidationError, 0, len(props))
		for _, p := range props {
			path := childPath(leaf.Path, p)
			out = append(out, ValidationError{
				Name:     dotted(name, path),
				Code:     CodeAdditional,
				Location: location,
				Value:    obj[p],
				HasValue: true,
				Message:  leaf.Message,
				path:     path,
			})
		}
		return out

	case engine.KeywordFalse:
		return []ValidationError{{
			Name:     dotted(name, leaf.Path),
			Code:     CodeAdditional,
			Location: location,
			Value:    leaf.Value,
			HasValue: true,
			Message:  leaf.Message,
			path:     leaf.Path,
		}}
	}

	var args map[string]any
	if len(leaf.Args) > 0 {
		args = make(map[string]any, len(leaf.Args))
		for k, v := range leaf.Args {
			args[k] = v
		}
	}
	return []ValidationError{{
		Name:     dotted(name, leaf.Path),
		Code:     "error_" + leaf.Keyword,
		Location: location,
		Value:    leaf.Value,
		HasValue: true,
		Args:     args,
		Message:  leaf.Message,
		path:     leaf.Path,
	}}
}

type rank struct {
	group int
	pos   int
	tok   string
}

func comparePaths(a, b ValidationError, order *pathutil.KeyOrder) int {
	for k := 0; ; k++ {
		endA, endB := k >= len(a.path), k >= len(b.path)
		switch {
		case endA && endB:
			return 0
		case endA:
			return -1
		case endB:
			return 1
		}
		if a.path[k] == b.path[k] {
			continue
		}
		parent := a.path[:k]
		ra := tokenRank(parent, a.path[k], a.missing && k == len(a.path)-1, order)
		rb := tokenRank(parent, b.path[k], b.missing && k == len(b.path)-1, order)
		switch {
		case ra.group != rb.group:
			return ra.group - rb.group
		case ra.pos != rb.pos:
			return ra.pos - rb.pos
		default:
			return strings.Compare(ra.tok, rb.tok)
		}
	}
}

func tokenRank(parent []string, tok string, missing bool, order *pathutil.KeyOrder) rank {
	if missing {
		return rank{group: 0}
	}
	if pos, ok := order.Position(parent, tok); ok {
		return rank{group: 1, pos: pos}
	}
	if i, err := strconv.Atoi(tok); err == nil && i >= 0 {
		return rank{group: 1, pos: i}
	}
	return rank{group: 2, tok: tok}
}

func childPath(parent []string, child string) []string {
	path := make([]string, len(parent), len(parent)+1)
	copy(path, parent)
	return append(path, child)
}

// dotted joins name and path with ".", skipping an empty name.
func dotted(name string, path []string) string {
	if len(path) == 0 {
		return name
	}
	return pathutil.Join(append([]string{name}, path...)...)
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{list}
	}
	return nil
}
