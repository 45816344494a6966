package httpvalidator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/erraggy/oasguard/openapi"
)

type contextKey int

const (
	errorsKey contextKey = iota
	queryKey
)

// ErrorsFromContext returns the request validation errors attached to the
// request handed to a BeforeHandler. It is empty for requests that passed
// validation.
func ErrorsFromContext(ctx context.Context) []ValidationError {
	errs, _ := ctx.Value(errorsKey).([]ValidationError)
	return errs
}

// QueryParams returns the deserialized query parameters of a dispatched
// request, including injected defaults.
func QueryParams(ctx context.Context) map[string]any {
	q, _ := ctx.Value(queryKey).(map[string]any)
	return q
}

// requestState is the outcome of request validation.
type requestState struct {
	req    *http.Request
	errs   []ValidationError
	query  map[string]any
	body   any
	isJSON bool
}

// validateRequest validates parameters and body of req against op. The
// returned request is a clone carrying the deserialized query and a
// re-readable body; req itself is never modified.
func (v *Validator) validateRequest(req *http.Request, op *openapi.Operation, pathValues map[string]string) (*requestState, error) {
	raw, readErr := readBody(req.Body, v.opts.MaxBodySize)
	if req.Body != nil {
		_ = req.Body.Close()
	}

	query, order := parseQuery(req.URL.RawQuery)
	query = deserializeQuery(query, op.ParametersIn(openapi.InQuery))
	path := deserializePath(pathValues, op.ParametersIn(openapi.InPath))

	var errs []ValidationError
	if !v.opts.AdditionalParameters {
		errs = append(errs, additionalParameters(op, path, query, order)...)
	}

	rewritten := false
	if v.opts.SetDefaultParameters {
		query, rewritten = withDefaults(query, op.ParametersIn(openapi.InQuery))
	}

	props := make([]Property, 0, len(op.Parameters))
	for _, p := range op.Parameters {
		val, ok := parameterValue(req, p, path, query)
		props = append(props, NewProperty(p.Name, p.In, p.Required, p.Schema, val, ok))
	}
	paramErrs, err := v.validateProperties(props)
	if err != nil {
		return nil, err
	}
	errs = append(errs, paramErrs...)

	st := &requestState{query: query}
	bodyErrs, err := v.validateRequestBody(req, op, raw, readErr, st)
	if err != nil {
		return nil, err
	}
	errs = append(errs, bodyErrs...)

	out := req.Clone(context.WithValue(req.Context(), queryKey, query))
	out.Body = io.NopCloser(bytes.NewReader(raw))
	out.ContentLength = int64(len(raw))
	if rewritten {
		u := *req.URL
		u.RawQuery = encodeQuery(query, order)
		out.URL = &u
		out.RequestURI = u.RequestURI()
	}
	st.req = out
	st.errs = errs
	return st, nil
}

// additionalParameters reports path and query parameters the operation
// does not declare, path first, query in order of appearance.
func additionalParameters(op *openapi.Operation, path, query map[string]any, order []string) []ValidationError {
	declared := make(map[string]bool, len(op.Parameters))
	for _, p := range op.Parameters {
		declared[p.In+"\x00"+p.Name] = true
	}
	var errs []ValidationError
	for _, name := range sortedKeys(path) {
		if !declared[openapi.InPath+"\x00"+name] {
			errs = append(errs, ValidationError{Name: name, Code: CodeAdditional, Location: LocationPath})
		}
	}
	for _, name := range order {
		if _, ok := query[name]; ok && !declared[openapi.InQuery+"\x00"+name] {
			errs = append(errs, ValidationError{Name: name, Code: CodeAdditional, Location: LocationQuery})
		}
	}
	return errs
}

// withDefaults copies query and fills absent parameters that declare a
// schema default.
func withDefaults(query map[string]any, params []*openapi.Parameter) (map[string]any, bool) {
	var out map[string]any
	for _, p := range params {
		def, ok := p.Schema["default"]
		if !ok {
			continue
		}
		if _, present := query[p.Name]; present {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(query)+1)
			for k, v := range query {
				out[k] = v
			}
		}
		out[p.Name] = def
	}
	if out == nil {
		return query, false
	}
	return out, true
}

func parameterValue(req *http.Request, p *openapi.Parameter, path, query map[string]any) (any, bool) {
	switch p.In {
	case openapi.InPath:
		v, ok := path[p.Name]
		return v, ok
	case openapi.InQuery:
		v, ok := query[p.Name]
		return v, ok
	case openapi.InHeader:
		values := req.Header.Values(p.Name)
		if len(values) == 0 {
			return nil, false
		}
		return headerValue(values, p), true
	case openapi.InCookie:
		c, err := req.Cookie(p.Name)
		if err != nil {
			return nil, false
		}
		return splitStructured(c.Value, ",", p.Explode, schemaType(p.Schema)), true
	}
	return nil, false
}

// validateRequestBody checks the body against the operation's request body
// for the request's media type. Media types without a declared schema are
// not checked.
func (v *Validator) validateRequestBody(req *http.Request, op *openapi.Operation, raw []byte, readErr error, st *requestState) ([]ValidationError, error) {
	rb := op.RequestBody
	if rb == nil {
		return nil, nil
	}
	if errors.Is(readErr, errBodyTooLarge) {
		return []ValidationError{{
			Name: NameRequestBody,
			Code: CodeMaxSize,
			Args: map[string]any{"max": v.opts.MaxBodySize},
		}}, nil
	}
	if readErr != nil {
		return []ValidationError{{Name: NameRequestBody, Code: CodeServer, Message: readErr.Error()}}, nil
	}

	contentType := req.Header.Get("Content-Type")
	mediaType := openapi.ParseMediaType(contentType)
	empty := len(bytes.TrimSpace(raw)) == 0
	if mediaType == "" {
		if empty && rb.Required {
			return []ValidationError{{Name: NameRequestBody, Code: CodeRequired}}, nil
		}
		return nil, nil
	}
	media := rb.MediaType(mediaType)
	if media == nil {
		return nil, nil
	}
	if empty {
		if rb.Required {
			return []ValidationError{{Name: NameRequestBody, Code: CodeRequired}}, nil
		}
		return nil, nil
	}

	switch {
	case openapi.IsJSON(mediaType):
		st.isJSON = true
		data, err := decodeJSON(raw)
		if err != nil {
			return []ValidationError{{Name: NameRequestBody, Code: CodeJSON, Location: LocationBody, Message: err.Error()}}, nil
		}
		st.body = data
		errs, _, err := v.validateBody(bodyCheck{name: NameRequestBody, schema: media.Schema, data: data, raw: raw})
		return errs, err
	case openapi.IsForm(mediaType):
		if media.Schema == nil {
			return nil, nil
		}
		fd, err := parseForm(mediaType, contentType, raw, v.opts.MaxBodySize)
		if err != nil {
			return []ValidationError{{Name: NameRequestBody, Code: CodeForm, Location: LocationFormData, Message: err.Error()}}, nil
		}
		return v.validateForm(media, fd)
	}
	return nil, nil
}
