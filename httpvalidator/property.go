package httpvalidator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/erraggy/oasguard/transcode"
)

// Property is one named value checked against its own schema: a parameter,
// a response header or a form field.
type Property struct {
	Name     string
	Location string
	Required bool
	Schema   map[string]any
	// Value is the coerced value. It is meaningful only when Present.
	Value   any
	Present bool
}

// NewProperty builds a Property, coercing wire strings toward the
// schema's declared type. A nil value is absent.
func NewProperty(name, location string, required bool, schema map[string]any, value any, present bool) Property {
	p := Property{
		Name:     name,
		Location: location,
		Required: required,
		Schema:   schema,
		Present:  present && value != nil,
	}
	if p.Present {
		p.Value = coerce(value, schema)
	}
	return p
}

var (
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
	numberPattern  = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// coerce converts numeric-looking strings to int64 or float64 for integer
// and number schemas, stringifies scalars for string schemas, and recurses
// into arrays and objects. Anything else is returned unchanged.
func coerce(value any, schema map[string]any) any {
	if schema == nil {
		return value
	}
	switch schemaType(schema) {
	case "integer":
		if s, ok := value.(string); ok {
			return parseInteger(s)
		}
	case "number":
		if s, ok := value.(string); ok && numberPattern.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	case "string":
		switch value.(type) {
		case string, []any, []string, map[string]any, map[string]string:
		default:
			return scalarString(value)
		}
	case "array":
		items, _ := schema["items"].(map[string]any)
		switch list := value.(type) {
		case []string:
			out := make([]any, len(list))
			for i, s := range list {
				out[i] = coerce(s, items)
			}
			return out
		case []any:
			out := make([]any, len(list))
			for i, e := range list {
				out[i] = coerce(e, items)
			}
			return out
		}
	case "object":
		switch obj := value.(type) {
		case map[string]any:
			out := make(map[string]any, len(obj))
			for k, e := range obj {
				out[k] = coerce(e, propertySchema(schema, k))
			}
			return out
		case map[string]string:
			out := make(map[string]any, len(obj))
			for k, e := range obj {
				out[k] = coerce(e, propertySchema(schema, k))
			}
			return out
		}
	}
	return value
}

// parseInteger returns an int64, or a float64 when s is numeric but not an
// in-range integer so the engine reports the mismatch.
func parseInteger(s string) any {
	if integerPattern.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	if numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	return s
}

func propertySchema(schema map[string]any, name string) map[string]any {
	if props, ok := schema["properties"].(map[string]any); ok {
		if p, ok := props[name].(map[string]any); ok {
			return p
		}
	}
	addl, _ := schema["additionalProperties"].(map[string]any)
	return addl
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprint(v)
	}
}

var lenientLocations = map[string]bool{
	LocationPath:     true,
	LocationQuery:    true,
	LocationHeader:   true,
	LocationCookie:   true,
	LocationFormData: true,
}

// lenient reports a type failure on a textual transport value that is an
// accepted spelling of the declared type: a single digit for integers, or
// 0, 1, true or false (any case) for booleans.
func lenient(e ValidationError) bool {
	if e.Code != CodeType || !lenientLocations[e.Location] {
		return false
	}
	s, ok := e.Value.(string)
	if !ok {
		return false
	}
	if e.expects("integer") && len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return true
	}
	if e.expects("boolean") {
		switch strings.ToLower(s) {
		case "0", "1", "true", "false":
			return true
		}
	}
	return false
}

// validateProperties checks every property and returns all failures.
// Formats are ensured for all properties before any is validated; a
// missing format is the only error returned.
func (v *Validator) validateProperties(props []Property) ([]ValidationError, error) {
	for _, p := range props {
		if err := v.ensureFormats(p.Schema); err != nil {
			return nil, err
		}
	}

	var errs []ValidationError
	for _, p := range props {
		if !p.Present {
			if p.Required {
				errs = append(errs, ValidationError{Name: p.Name, Code: CodeRequired, Location: p.Location})
			}
			continue
		}
		if p.Schema == nil {
			continue
		}
		node, err := v.engine.Validate(p.Value, transcode.Transcode(p.Schema))
		if err != nil {
			v.logger.Warn("schema engine failed", "name", p.Name, "location", p.Location, "error", err)
			errs = append(errs, serverError(err))
			continue
		}
		for _, e := range normalize(node, p.Name, p.Location, nil) {
			if !lenient(e) {
				errs = append(errs, e)
			}
		}
	}
	return errs, nil
}

// ensureFormats registers or synthesizes every non-native format declared
// in schema.
func (v *Validator) ensureFormats(schema map[string]any) error {
	if schema == nil {
		return nil
	}
	for _, pair := range transcode.Formats(schema) {
		err := v.registry.Ensure(pair.Type, pair.Format)
		if err == nil {
			continue
		}
		if v.opts.MissingFormatFatal {
			return err
		}
		v.logger.Debug("format not enforced", "type", pair.Type, "format", pair.Format)
	}
	return nil
}

func serverError(err error) ValidationError {
	return ValidationError{Name: NameServer, Code: CodeServer, Message: err.Error()}
}
