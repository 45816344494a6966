package openapi

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasguard/internal/pathutil"
	"github.com/erraggy/oasguard/oaserrors"
)

// MaxRefDepth bounds how many nested $ref hops are followed while inlining
// a single value.
const MaxRefDepth = 64

// httpMethods lists the operation keys of a path item in declaration order.
var httpMethods = []string{
	http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete,
	http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodTrace,
}

// Document is a loaded OpenAPI 3.x document with every local $ref inlined.
type Document struct {
	// Source is the file path or identifier the document was read from.
	Source string
	// Version is the value of the top-level "openapi" field.
	Version string
	// Title is info.title, if present.
	Title string

	root       map[string]any
	matchers   *PathMatcherSet
	operations map[string]map[string]*Operation // template -> METHOD -> op
}

// Load reads and parses the OpenAPI document at path.
// A missing file is reported as *oaserrors.ConfigError.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &oaserrors.ConfigError{
				Option:  "file",
				Value:   path,
				Message: "OpenAPI document not found",
				Cause:   err,
			}
		}
		return nil, &oaserrors.ParseError{Path: path, Message: "failed to read file", Cause: err}
	}
	return Parse(data, path)
}

// Parse decodes a JSON or YAML OpenAPI document.
func Parse(data []byte, source string) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "invalid document", Cause: err}
	}
	decoded, err := nodeValue(&node)
	if err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "invalid document", Cause: err}
	}
	root, ok := decoded.(map[string]any)
	if !ok {
		return nil, &oaserrors.ParseError{
			Path:    source,
			Line:    node.Line,
			Column:  node.Column,
			Message: "document root must be an object",
		}
	}
	return FromMap(root, source)
}

// FromMap builds a Document from an already decoded document tree.
func FromMap(root map[string]any, source string) (*Document, error) {
	version, _ := root["openapi"].(string)
	if !strings.HasPrefix(version, "3.") {
		return nil, &oaserrors.ParseError{
			Path:    source,
			Message: fmt.Sprintf("unsupported OpenAPI version %q (want 3.x)", version),
		}
	}

	d := &Document{
		Source:     source,
		Version:    version,
		root:       root,
		operations: make(map[string]map[string]*Operation),
	}
	if info, ok := root["info"].(map[string]any); ok {
		d.Title, _ = info["title"].(string)
	}

	resolved, err := d.resolve(root["paths"], nil)
	if err != nil {
		return nil, err
	}
	paths, _ := resolved.(map[string]any)

	templates := make([]string, 0, len(paths))
	for template, raw := range paths {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		templates = append(templates, template)
		d.operations[template] = buildOperations(template, item)
	}

	matchers, err := NewPathMatcherSet(templates)
	if err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "invalid path template", Cause: err}
	}
	d.matchers = matchers
	return d, nil
}

// Match resolves a method and request target to an operation. The target
// may carry a query string. Path parameter values are percent-decoded.
func (d *Document) Match(method, target string) (*Operation, map[string]string, bool) {
	path := target
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	// A more specific template without the method does not hide a less
	// specific one that declares it.
	method = strings.ToUpper(method)
	var (
		op  *Operation
		raw map[string]string
	)
	for _, m := range d.matchers.MatchAll(path) {
		if candidate, ok := d.operations[m.Template][method]; ok {
			op, raw = candidate, m.Params
			break
		}
	}
	if op == nil {
		return nil, nil, false
	}
	params := make(map[string]string, len(raw))
	for name, value := range raw {
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		params[name] = value
	}
	return op, params, true
}

// Paths returns the document's path templates in match order.
func (d *Document) Paths() []string {
	return d.matchers.Templates()
}

// TemplateParams returns the parameter names written in a path template,
// in order of appearance.
func (d *Document) TemplateParams(template string) []string {
	m, ok := d.matchers.Lookup(template)
	if !ok {
		return nil
	}
	return m.ParamNames()
}

// Operations returns every operation sorted by path template, then by
// method declaration order.
func (d *Document) Operations() []*Operation {
	templates := make([]string, 0, len(d.operations))
	for t := range d.operations {
		templates = append(templates, t)
	}
	sort.Strings(templates)

	var ops []*Operation
	for _, t := range templates {
		for _, m := range httpMethods {
			if op, ok := d.operations[t][m]; ok {
				ops = append(ops, op)
			}
		}
	}
	return ops
}

// resolve returns a copy of v in which every local $ref has been replaced
// by its target. stack holds the references being expanded; a reference
// that points back into the stack through at least one schema is replaced
// by an empty schema, which accepts any value.
func (d *Document) resolve(v any, stack []string) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := node["$ref"].(string); ok {
			return d.resolveRef(ref, stack)
		}
		out := make(map[string]any, len(node))
		for k, child := range node {
			r, err := d.resolve(child, stack)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			r, err := d.resolve(child, stack)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func (d *Document) resolveRef(ref string, stack []string) (any, error) {
	if slices.Contains(stack, ref) {
		return map[string]any{}, nil
	}
	if len(stack) >= MaxRefDepth {
		return nil, &oaserrors.ResourceLimitError{
			ResourceType: "ref_depth",
			Limit:        MaxRefDepth,
			Actual:       int64(len(stack) + 1),
			Message:      ref,
		}
	}
	tokens, err := pathutil.SplitPointer(ref)
	if err != nil {
		return nil, &oaserrors.ReferenceError{Ref: ref, Message: "unsupported reference", Cause: err}
	}
	target, ok := pathutil.Lookup(d.root, tokens)
	if !ok {
		return nil, &oaserrors.ReferenceError{Ref: ref, Message: "target not found"}
	}
	stack = append(stack, ref)
	// A chain of bare aliases that loops has no schema to fall back on.
	if m, ok := target.(map[string]any); ok {
		if next, ok := m["$ref"].(string); ok && slices.Contains(stack, next) {
			return nil, &oaserrors.ReferenceError{Ref: next, IsCircular: true}
		}
	}
	return d.resolve(target, stack)
}

// nodeValue converts a YAML node into plain Go values. Mapping keys are
// always strings, so unquoted response codes like 200 stay addressable.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := nodeValue(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d, column %d: %w", n.Line, n.Column, err)
		}
		return v, nil
	default:
		return nil, nil
	}
}
