package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/internal/pathutil"
	"github.com/erraggy/oasguard/transcode"
)

// gojsonschema keeps format checkers in a process-wide table. bridge
// tracks which registry currently backs it; validation holds bridge.mu so
// that checks never see another registry's formats.
var bridge struct {
	mu         sync.Mutex
	registry   *formats.Registry
	generation uint64
	names      []string
}

type registryChecker struct {
	registry *formats.Registry
	name     string
}

func (c registryChecker) IsFormat(input any) bool {
	return c.registry.Check(c.name, input)
}

// GoJSONSchema validates with github.com/xeipuuv/gojsonschema. The library
// shares format checkers across the process, so validations through
// different GoJSONSchema values are serialized.
type GoJSONSchema struct {
	registry *formats.Registry
	draft    gojsonschema.Draft

	mu    sync.Mutex
	cache map[[sha256.Size]byte]*gojsonschema.Schema
}

// NewGoJSONSchema returns the alternate engine. Messages are always
// English.
func NewGoJSONSchema(registry *formats.Registry, opts ...Option) (*GoJSONSchema, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	draft := gojsonschema.Draft4
	if cfg.draft == Draft2020 {
		draft = gojsonschema.Hybrid
	}
	return &GoJSONSchema{
		registry: registry,
		draft:    draft,
		cache:    make(map[[sha256.Size]byte]*gojsonschema.Schema),
	}, nil
}

// Name implements Engine.
func (e *GoJSONSchema) Name() string { return NameGoJSONSchema }

// Validate implements Engine.
func (e *GoJSONSchema) Validate(instance any, schema map[string]any) (*Node, error) {
	sch, err := e.compile(schema)
	if err != nil {
		return nil, err
	}
	instance = Instance(instance)

	bridge.mu.Lock()
	e.bind()
	result, err := sch.Validate(gojsonschema.NewGoLoader(instance))
	bridge.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	// gojsonschema reports combinator failures next to their branch
	// failures. The combinator node is only kept when it is the sole
	// explanation, as for a oneOf matched by more than one branch.
	root := &Node{Keyword: KeywordGroup}
	var combinators []*Node
	for _, re := range result.Errors() {
		leaf := e.convert(re, instance)
		if combinatorKeywords[leaf.Keyword] {
			combinators = append(combinators, leaf)
			continue
		}
		root.Causes = append(root.Causes, leaf)
	}
	if len(root.Causes) == 0 {
		root.Causes = combinators
	}
	return root, nil
}

var combinatorKeywords = map[string]bool{
	KeywordAnyOf: true,
	KeywordOneOf: true,
	KeywordAllOf: true,
}

// bind installs this engine's registry as the global format table.
// Callers hold bridge.mu.
func (e *GoJSONSchema) bind() {
	if e.registry == nil {
		return
	}
	gen := e.registry.Generation()
	if bridge.registry == e.registry && bridge.generation == gen {
		return
	}
	for _, name := range bridge.names {
		if !transcode.IsNative(name) {
			gojsonschema.FormatCheckers.Remove(name)
		}
	}
	bridge.names = bridge.names[:0]
	for _, name := range e.registry.Names() {
		if transcode.IsNative(name) {
			if _, ok := e.registry.Lookup("string", name); !ok {
				continue
			}
		}
		gojsonschema.FormatCheckers.Add(name, registryChecker{registry: e.registry, name: name})
		bridge.names = append(bridge.names, name)
	}
	bridge.registry = e.registry
	bridge.generation = gen
}

func (e *GoJSONSchema) compile(schema map[string]any) (*gojsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	sum := sha256.Sum256(raw)

	e.mu.Lock()
	defer e.mu.Unlock()
	if sch, ok := e.cache[sum]; ok {
		return sch, nil
	}
	sl := gojsonschema.NewSchemaLoader()
	sl.Draft = e.draft
	sch, err := sl.Compile(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	e.cache[sum] = sch
	return sch, nil
}

func (e *GoJSONSchema) convert(re gojsonschema.ResultError, instance any) *Node {
	path := contextPath(re.Context())
	details := re.Details()
	n := &Node{Path: path, Message: re.Description(), Args: map[string]any{}}

	switch re.Type() {
	case "invalid_type":
		n.Keyword = KeywordType
		n.Args[ArgExpected] = parseTypes(fmt.Sprint(details["expected"]))
	case "enum":
		n.Keyword = KeywordEnum
		n.Args[ArgExpected] = parseEnum(fmt.Sprint(details["allowed"]))
	case "const":
		n.Keyword = KeywordConst
		n.Args[ArgExpected] = details["allowed"]
	case "format":
		n.Keyword = KeywordFormat
		n.Args[ArgFormat] = details["format"]
	case "required":
		n.Keyword = KeywordRequired
		n.Args[ArgMissing] = []string{fmt.Sprint(details["property"])}
	case "additional_property_not_allowed":
		n.Keyword = KeywordAdditionalProperties
		n.Args[ArgProperties] = []string{fmt.Sprint(details["property"])}
	case "false":
		n.Keyword = KeywordFalse
	case "pattern":
		n.Keyword = KeywordPattern
		n.Args[ArgPattern] = details["pattern"]
	case "array_min_items":
		n.Keyword = KeywordMinItems
		n.Args[ArgMin] = details["min"]
	case "array_max_items":
		n.Keyword = KeywordMaxItems
		n.Args[ArgMax] = details["max"]
	case "string_gte":
		n.Keyword = KeywordMinLength
		n.Args[ArgMin] = details["min"]
	case "string_lte":
		n.Keyword = KeywordMaxLength
		n.Args[ArgMax] = details["max"]
	case "array_min_properties":
		n.Keyword = KeywordMinProperties
		n.Args[ArgMin] = details["min"]
	case "array_max_properties":
		n.Keyword = KeywordMaxProperties
		n.Args[ArgMax] = details["max"]
	case "number_gte":
		n.Keyword = KeywordMinimum
		n.Args[ArgMin] = bigValue(details["min"])
	case "number_gt":
		n.Keyword = KeywordExclusiveMinimum
		n.Args[ArgMin] = bigValue(details["min"])
	case "number_lte":
		n.Keyword = KeywordMaximum
		n.Args[ArgMax] = bigValue(details["max"])
	case "number_lt":
		n.Keyword = KeywordExclusiveMaximum
		n.Args[ArgMax] = bigValue(details["max"])
	case "multiple_of":
		n.Keyword = KeywordMultipleOf
		n.Args[ArgMultiple] = bigValue(details["multiple"])
	case "unique":
		n.Keyword = KeywordUniqueItems
	case "number_any_of":
		n.Keyword = KeywordAnyOf
	case "number_one_of":
		n.Keyword = KeywordOneOf
	case "number_all_of":
		n.Keyword = KeywordAllOf
	case "number_not":
		n.Keyword = KeywordNot
	default:
		n.Keyword = re.Type()
	}

	n.Value, _ = pathutil.Lookup(instance, path)
	if n.Keyword == KeywordType {
		n.Args[ArgUsed] = JSONType(n.Value)
	}
	if len(n.Args) == 0 {
		n.Args = nil
	}
	return n
}

// contextPath turns "(root).person.email" into [person email].
func contextPath(ctx *gojsonschema.JsonContext) []string {
	if ctx == nil {
		return nil
	}
	parts := strings.Split(ctx.String("\x00"), "\x00")
	if len(parts) > 0 && parts[0] == gojsonschema.STRING_CONTEXT_ROOT {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// parseTypes reads "string" or "[string,null]".
func parseTypes(s string) any {
	if !strings.HasPrefix(s, "[") {
		return s
	}
	return strings.Split(strings.Trim(s, "[]"), ",")
}

// parseEnum reads the comma-joined JSON literals gojsonschema reports.
func parseEnum(s string) []any {
	var out []any
	if err := json.Unmarshal([]byte("["+s+"]"), &out); err != nil {
		return []any{s}
	}
	return out
}

type floatLike interface {
	Float64() (float64, big.Accuracy)
}

func bigValue(v any) any {
	f, ok := v.(floatLike)
	if !ok {
		return v
	}
	val, _ := f.Float64()
	if val == float64(int64(val)) {
		return int64(val)
	}
	return val
}
