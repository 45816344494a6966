package formats

import (
	"encoding/json"
	"math"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/erraggy/oasguard/oaserrors"
)

// Validator checks a single instance value against a format.
type Validator interface {
	Validate(value any) bool
}

// Func adapts a plain function to Validator.
type Func func(value any) bool

// Validate calls f(value).
func (f Func) Validate(value any) bool { return f(value) }

type key struct {
	typ    string
	format string
}

// Registry maps (type, format) pairs to validators. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	entries    map[key]Validator
	missing    map[key]error
	generation uint64
	rules      *validator.Validate
}

// NewRegistry returns a registry holding the built-in formats.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[key]Validator),
		missing: make(map[key]error),
		rules:   validator.New(),
	}
	for k, v := range builtins() {
		r.entries[k] = v
	}
	return r
}

// Add registers v for (typ, format), replacing any previous entry.
func (r *Registry) Add(typ, format string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{typ, format}
	r.entries[k] = v
	delete(r.missing, k)
	r.generation++
}

// Lookup returns the validator registered for (typ, format).
func (r *Registry) Lookup(typ, format string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key{typ, format}]
	return v, ok
}

// Generation changes every time the set of validators changes.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Names returns the distinct format names known to the registry, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.entries))
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		if !seen[k.format] {
			seen[k.format] = true
			names = append(names, k.format)
		}
	}
	sort.Strings(names)
	return names
}

// Ensure makes sure (typ, format) has a validator, synthesizing one from a
// rule expression such as "between(10,20)" when needed. A format that is
// neither registered nor a known rule yields *oaserrors.MissingFormatError.
func (r *Registry) Ensure(typ, format string) error {
	k := key{typ, format}
	r.mu.RLock()
	_, ok := r.entries[k]
	cached := r.missing[k]
	r.mu.RUnlock()
	if ok {
		return nil
	}
	if cached != nil {
		return cached
	}

	v, err := r.synthesize(format)
	if err != nil {
		missing := &oaserrors.MissingFormatError{Type: typ, Format: format, Cause: err}
		r.mu.Lock()
		r.missing[k] = missing
		r.mu.Unlock()
		return missing
	}
	r.Add(typ, format, v)
	return nil
}

// Check validates value against format using the entry that matches the
// value's JSON type. Integral numbers try "integer" before "number". A
// value with no matching entry passes.
func (r *Registry) Check(format string, value any) bool {
	for _, typ := range jsonTypes(value) {
		if v, ok := r.Lookup(typ, format); ok {
			return v.Validate(value)
		}
	}
	return true
}

func jsonTypes(value any) []string {
	switch value.(type) {
	case string:
		return []string{"string"}
	case bool:
		return []string{"boolean"}
	case nil:
		return []string{"null"}
	case []any:
		return []string{"array"}
	case map[string]any:
		return []string{"object"}
	}
	if f, ok := toFloat(value); ok {
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return []string{"integer", "number"}
		}
		return []string{"number"}
	}
	return nil
}

// toFloat converts any numeric instance value to float64.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
