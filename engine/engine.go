// Package engine runs JSON Schema validation through interchangeable
// third-party engines and reports failures in one engine-neutral shape.
//
// Two engines are provided: [JSONSchema], backed by
// github.com/santhosh-tekuri/jsonschema/v6, and [GoJSONSchema], backed by
// github.com/xeipuuv/gojsonschema. Both consult a *formats.Registry for the
// "format" keyword and return a tree of [Node] values on failure.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"

	"github.com/erraggy/oasguard/formats"
)

// Keywords reported in Node.Keyword. Composite nodes use KeywordGroup or
// the applicator that failed (allOf, anyOf, oneOf, ...).
const (
	KeywordGroup                = "group"
	KeywordType                 = "type"
	KeywordEnum                 = "enum"
	KeywordConst                = "const"
	KeywordFormat               = "format"
	KeywordRequired             = "required"
	KeywordAdditionalProperties = "additionalProperties"
	KeywordFalse                = "false"
	KeywordPattern              = "pattern"
	KeywordMinItems             = "minItems"
	KeywordMaxItems             = "maxItems"
	KeywordMinLength            = "minLength"
	KeywordMaxLength            = "maxLength"
	KeywordMinProperties        = "minProperties"
	KeywordMaxProperties        = "maxProperties"
	KeywordMinimum              = "minimum"
	KeywordMaximum              = "maximum"
	KeywordExclusiveMinimum     = "exclusiveMinimum"
	KeywordExclusiveMaximum     = "exclusiveMaximum"
	KeywordMultipleOf           = "multipleOf"
	KeywordUniqueItems          = "uniqueItems"
	KeywordAnyOf                = "anyOf"
	KeywordOneOf                = "oneOf"
	KeywordAllOf                = "allOf"
	KeywordNot                  = "not"
)

// Argument names carried in Node.Args.
const (
	ArgExpected   = "expected"
	ArgUsed       = "used"
	ArgMin        = "min"
	ArgMax        = "max"
	ArgCount      = "count"
	ArgFormat     = "format"
	ArgPattern    = "pattern"
	ArgMissing    = "missing"
	ArgProperties = "properties"
	ArgMultiple   = "multiple"
)

// Node is one failure in a validation result. A node with Causes is
// composite and only groups its children; a node without Causes is a leaf
// describing a single keyword failure.
type Node struct {
	// Keyword is the failing schema keyword.
	Keyword string
	// Path locates the offending value inside the instance.
	Path []string
	// Value is the offending value.
	Value any
	// Args holds keyword-specific details, keyed by the Arg* constants.
	Args map[string]any
	// Message is the engine's human-readable description.
	Message string
	Causes  []*Node
}

// Leaves returns the leaf nodes under n in depth-first order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if len(n.Causes) == 0 {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Causes {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Engine validates instances against JSON Schema documents.
type Engine interface {
	// Validate returns nil when instance satisfies schema and the failure
	// tree otherwise. A non-nil error means the schema itself could not be
	// used.
	Validate(instance any, schema map[string]any) (*Node, error)
	// Name identifies the engine in logs and configuration.
	Name() string
}

// Engine names accepted by New.
const (
	NameJSONSchema   = "jsonschema"
	NameGoJSONSchema = "gojsonschema"
)

// Draft selects the JSON Schema dialect schemas are compiled as.
type Draft int

// Supported drafts. OpenAPI 3.0 schemas follow Draft4 semantics
// (boolean exclusiveMinimum); OpenAPI 3.1 uses Draft2020.
const (
	Draft4 Draft = iota
	Draft2020
)

// DraftFor returns the draft matching an OpenAPI document version.
func DraftFor(openapiVersion string) Draft {
	if strings.HasPrefix(openapiVersion, "3.0") {
		return Draft4
	}
	return Draft2020
}

type config struct {
	draft Draft
	lang  language.Tag
}

// Option configures an engine.
type Option func(*config) error

// WithDraft sets the schema dialect.
func WithDraft(d Draft) Option {
	return func(c *config) error {
		c.draft = d
		return nil
	}
}

// WithLanguage sets the language of failure messages, as a BCP 47 tag.
// Engines without translations fall back to English.
func WithLanguage(tag string) Option {
	return func(c *config) error {
		if tag == "" {
			return nil
		}
		t, err := language.Parse(tag)
		if err != nil {
			return fmt.Errorf("invalid language %q: %w", tag, err)
		}
		c.lang = t
		return nil
	}
}

func newConfig(opts []Option) (*config, error) {
	c := &config{draft: Draft4, lang: language.English}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// JSONType names the JSON type of v the way error records report it.
// Integral numbers are "integer".
func JSONType(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return "integer"
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return "integer"
		}
		return "number"
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return "integer"
		}
		return "number"
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return "integer"
		}
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Instance converts common Go shapes produced while decoding HTTP input
// ([]string, map[string]string, nested maps) into plain JSON values.
func Instance(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Instance(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Instance(e)
		}
		return out
	case int:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// New returns the engine called name. An empty name selects
// NameJSONSchema.
func New(name string, registry *formats.Registry, opts ...Option) (Engine, error) {
	switch name {
	case "", NameJSONSchema:
		return NewJSONSchema(registry, opts...)
	case NameGoJSONSchema:
		return NewGoJSONSchema(registry, opts...)
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
