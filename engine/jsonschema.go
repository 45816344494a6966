package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/message"

	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/internal/pathutil"
	"github.com/erraggy/oasguard/transcode"
)

const schemaURL = "mem://oasguard/schema.json"

var errInvalidFormat = errors.New("invalid format")

type cacheKey struct {
	sum        [sha256.Size]byte
	generation uint64
}

// JSONSchema validates with github.com/santhosh-tekuri/jsonschema/v6.
// Compiled schemas are cached by content and registry generation.
type JSONSchema struct {
	registry *formats.Registry
	draft    *jsonschema.Draft
	printer  *message.Printer

	mu    sync.Mutex
	cache map[cacheKey]*jsonschema.Schema
}

// NewJSONSchema returns the default engine.
func NewJSONSchema(registry *formats.Registry, opts ...Option) (*JSONSchema, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	draft := jsonschema.Draft4
	if cfg.draft == Draft2020 {
		draft = jsonschema.Draft2020
	}
	return &JSONSchema{
		registry: registry,
		draft:    draft,
		printer:  message.NewPrinter(cfg.lang),
		cache:    make(map[cacheKey]*jsonschema.Schema),
	}, nil
}

// Name implements Engine.
func (e *JSONSchema) Name() string { return NameJSONSchema }

// Validate implements Engine.
func (e *JSONSchema) Validate(instance any, schema map[string]any) (*Node, error) {
	sch, err := e.compile(schema)
	if err != nil {
		return nil, err
	}
	instance = Instance(instance)
	err = sch.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	return e.convert(verr, instance), nil
}

func (e *JSONSchema) compile(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var gen uint64
	if e.registry != nil {
		gen = e.registry.Generation()
	}
	key := cacheKey{sum: sha256.Sum256(raw), generation: gen}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sch, ok := e.cache[key]; ok {
		return sch, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(e.draft)
	c.AssertFormat()
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			if transcode.IsNative(name) {
				if _, ok := e.registry.Lookup("string", name); !ok {
					continue
				}
			}
			c.RegisterFormat(e.format(name))
		}
	}
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	e.cache[key] = sch
	return sch, nil
}

func (e *JSONSchema) format(name string) *jsonschema.Format {
	return &jsonschema.Format{
		Name: name,
		Validate: func(v any) error {
			if e.registry.Check(name, v) {
				return nil
			}
			return errInvalidFormat
		},
	}
}

func (e *JSONSchema) convert(verr *jsonschema.ValidationError, instance any) *Node {
	n := &Node{
		Path:    verr.InstanceLocation,
		Message: verr.ErrorKind.LocalizedString(e.printer),
	}
	n.Value, _ = pathutil.Lookup(instance, n.Path)

	if len(verr.Causes) > 0 {
		n.Keyword = KeywordGroup
		if kp := verr.ErrorKind.KeywordPath(); len(kp) > 0 {
			n.Keyword = kp[len(kp)-1]
		}
		for _, c := range verr.Causes {
			n.Causes = append(n.Causes, e.convert(c, instance))
		}
		return n
	}

	n.Args = map[string]any{}
	switch k := verr.ErrorKind.(type) {
	case *kind.Type:
		n.Keyword = KeywordType
		n.Args[ArgExpected] = expected(k.Want)
		n.Args[ArgUsed] = JSONType(n.Value)
	case *kind.Enum:
		n.Keyword = KeywordEnum
		n.Args[ArgExpected] = k.Want
	case *kind.Const:
		n.Keyword = KeywordConst
		n.Args[ArgExpected] = k.Want
	case *kind.Format:
		n.Keyword = KeywordFormat
		n.Args[ArgFormat] = k.Want
	case *kind.Required:
		n.Keyword = KeywordRequired
		n.Args[ArgMissing] = k.Missing
	case *kind.AdditionalProperties:
		n.Keyword = KeywordAdditionalProperties
		n.Args[ArgProperties] = k.Properties
	case *kind.FalseSchema:
		n.Keyword = KeywordFalse
	case *kind.Pattern:
		n.Keyword = KeywordPattern
		n.Args[ArgPattern] = k.Want
	case *kind.MinItems:
		n.Keyword = KeywordMinItems
		n.Args[ArgMin], n.Args[ArgCount] = k.Want, k.Got
	case *kind.MaxItems:
		n.Keyword = KeywordMaxItems
		n.Args[ArgMax], n.Args[ArgCount] = k.Want, k.Got
	case *kind.MinLength:
		n.Keyword = KeywordMinLength
		n.Args[ArgMin], n.Args[ArgCount] = k.Want, k.Got
	case *kind.MaxLength:
		n.Keyword = KeywordMaxLength
		n.Args[ArgMax], n.Args[ArgCount] = k.Want, k.Got
	case *kind.MinProperties:
		n.Keyword = KeywordMinProperties
		n.Args[ArgMin], n.Args[ArgCount] = k.Want, k.Got
	case *kind.MaxProperties:
		n.Keyword = KeywordMaxProperties
		n.Args[ArgMax], n.Args[ArgCount] = k.Want, k.Got
	case *kind.Minimum:
		n.Keyword = KeywordMinimum
		n.Args[ArgMin] = ratValue(k.Want)
	case *kind.Maximum:
		n.Keyword = KeywordMaximum
		n.Args[ArgMax] = ratValue(k.Want)
	case *kind.ExclusiveMinimum:
		n.Keyword = KeywordExclusiveMinimum
		n.Args[ArgMin] = ratValue(k.Want)
	case *kind.ExclusiveMaximum:
		n.Keyword = KeywordExclusiveMaximum
		n.Args[ArgMax] = ratValue(k.Want)
	case *kind.MultipleOf:
		n.Keyword = KeywordMultipleOf
		n.Args[ArgMultiple] = ratValue(k.Want)
	case *kind.UniqueItems:
		n.Keyword = KeywordUniqueItems
	case *kind.OneOf:
		n.Keyword = KeywordOneOf
	case *kind.Not:
		n.Keyword = KeywordNot
	default:
		n.Keyword = KeywordGroup
		if kp := verr.ErrorKind.KeywordPath(); len(kp) > 0 {
			n.Keyword = kp[len(kp)-1]
		}
	}
	return n
}

// expected collapses a single wanted type to a string.
func expected(want []string) any {
	if len(want) == 1 {
		return want[0]
	}
	return want
}

func ratValue(r *big.Rat) any {
	if r == nil {
		return nil
	}
	if r.IsInt() && r.Num().IsInt64() {
		return r.Num().Int64()
	}
	f, _ := r.Float64()
	return f
}
