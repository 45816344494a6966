package httpvalidator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/erraggy/oasguard/internal/pathutil"
	"github.com/erraggy/oasguard/transcode"
)

var errBodyTooLarge = errors.New("body exceeds the configured maximum size")

// readBody reads at most limit bytes from r. Reading more fails with
// errBodyTooLarge; the bytes read so far are still returned.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	n, err := buf.ReadFrom(io.LimitReader(r, limit+1))
	data := bytes.Clone(buf.Bytes())
	if err != nil {
		return data, err
	}
	if n > limit {
		return data[:limit], errBodyTooLarge
	}
	return data, nil
}

// decodeJSON decodes raw keeping numbers as json.Number. Empty input
// decodes to nil.
func decodeJSON(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// bodyCheck is one body validation pass.
type bodyCheck struct {
	// name labels whole-body failures (requestBody or responseBody).
	name   string
	schema map[string]any
	data   any
	// raw is the wire form of data, used to order failures.
	raw   []byte
	strip bool
}

// validateBody validates a decoded JSON body. In strip mode undeclared
// fields and null-valued type failures are removed from a copy of the body
// instead of being reported; the returned body is that copy. Otherwise the
// returned body is data itself.
func (v *Validator) validateBody(c bodyCheck) ([]ValidationError, any, error) {
	if c.schema == nil {
		return nil, c.data, nil
	}
	if c.data == nil {
		return []ValidationError{{Name: c.name, Code: CodeRequired}}, nil, nil
	}
	if err := v.ensureFormats(c.schema); err != nil {
		return nil, c.data, err
	}

	schema := transcode.Transcode(c.schema)
	if c.strip {
		schema = transcode.ForbidAdditional(schema)
	}
	node, err := v.engine.Validate(c.data, schema)
	if err != nil {
		v.logger.Warn("schema engine failed", "name", c.name, "error", err)
		return []ValidationError{serverError(err)}, c.data, nil
	}

	if node == nil {
		return nil, c.data, nil
	}

	errs := normalize(node, "", LocationBody, pathutil.NewKeyOrder(c.raw))
	for i := range errs {
		if errs[i].Name == "" {
			errs[i].Name = c.name
		}
	}
	if !v.opts.StrictEmptyArrayValidation {
		errs = dropEmptyArrayAmbiguity(errs)
	}
	if !c.strip {
		return errs, c.data, nil
	}
	errs, body := strip(errs, c.data)
	return errs, body, nil
}

// dropEmptyArrayAmbiguity removes type failures where an object was
// expected and an empty array was found. Empty objects and empty arrays
// are indistinguishable on some transports.
func dropEmptyArrayAmbiguity(errs []ValidationError) []ValidationError {
	out := errs[:0]
	for _, e := range errs {
		if e.Code == CodeType && e.expects("object") && e.Arg("used") == "array" {
			if list, ok := e.Value.([]any); ok && len(list) == 0 {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// strippable reports failures that strip mode resolves by deletion.
func strippable(e ValidationError) bool {
	if e.Code == CodeAdditional {
		return true
	}
	return e.Code == CodeType && e.Arg("used") == "null" && e.HasValue && e.Value == nil
}

// strip deletes the fields behind strippable failures from a copy of body,
// one path at a time. Later paths are deleted first so array indices stay
// valid.
func strip(errs []ValidationError, body any) ([]ValidationError, any) {
	var kept []ValidationError
	var remove [][]string
	for _, e := range errs {
		if strippable(e) && len(e.path) > 0 {
			remove = append(remove, e.path)
			continue
		}
		kept = append(kept, e)
	}
	if len(remove) == 0 {
		return kept, body
	}
	out := pathutil.Clone(body)
	for i := len(remove) - 1; i >= 0; i-- {
		out = pathutil.Delete(out, remove[i])
	}
	return kept, out
}
