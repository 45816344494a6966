package httpvalidator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/erraggy/oasguard/openapi"
)

// exampleResponse fills an empty handler response from the operation's
// example response. An object example is merged with the request's JSON
// object body, request fields winning. The status becomes the example
// response's code when that code is numeric.
func (v *Validator) exampleResponse(resp *Response, req *http.Request, op *openapi.Operation, st *requestState) *Response {
	def, _ := op.ExampleResponse()
	if def == nil {
		return resp
	}
	mediaType := openapi.ParseMediaType(req.Header.Get("Content-Type"))
	media := def.MediaType(mediaType)
	if media == nil {
		mediaType = def.DefaultMediaType()
		media = def.MediaType(mediaType)
	}
	if mediaType == "" {
		mediaType = "application/json"
	}

	example, ok := media.Example()
	if !ok {
		example = map[string]any{}
	}
	if obj, isObj := example.(map[string]any); isObj && st != nil {
		if reqObj, ok := st.body.(map[string]any); ok {
			merged := make(map[string]any, len(obj)+len(reqObj))
			for k, val := range obj {
				merged[k] = val
			}
			for k, val := range reqObj {
				merged[k] = val
			}
			example = merged
		}
	}

	body, err := json.Marshal(example)
	if err != nil {
		v.logger.Warn("example not encodable", "path", op.Path, "error", err)
		return resp
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: body}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	out.Header.Set("Content-Type", mediaType+";charset=utf-8")
	out.Header.Del("Content-Length")
	if code, err := strconv.Atoi(def.StatusCode); err == nil {
		out.StatusCode = code
	}
	return out
}

// validateResponseBody checks resp against the response declared for its
// status code. Non-JSON media types are not checked. In strip mode the
// returned response carries the stripped body.
func (v *Validator) validateResponseBody(resp *Response, op *openapi.Operation) ([]ValidationError, *Response, error) {
	def := op.Response(resp.StatusCode)
	if def == nil {
		return nil, resp, nil
	}
	mediaType := openapi.ParseMediaType(resp.Header.Get("Content-Type"))
	media := def.MediaType(mediaType)
	if media == nil || media.Schema == nil {
		mediaType = def.DefaultMediaType()
		media = def.MediaType(mediaType)
	}
	if media == nil || media.Schema == nil || !openapi.IsJSON(mediaType) {
		return nil, resp, nil
	}

	if int64(len(resp.Body)) > v.opts.MaxBodySize && v.opts.MaxBodySize > 0 {
		return []ValidationError{{
			Name: NameResponseBody,
			Code: CodeMaxSize,
			Args: map[string]any{"max": v.opts.MaxBodySize},
		}}, resp, nil
	}
	data, err := decodeJSON(resp.Body)
	if err != nil {
		return []ValidationError{{Name: NameResponseBody, Code: CodeJSON, Location: LocationBody, Message: err.Error()}}, resp, nil
	}

	errs, body, err := v.validateBody(bodyCheck{
		name:   NameResponseBody,
		schema: media.Schema,
		data:   data,
		raw:    resp.Body,
		strip:  v.opts.StripResponse,
	})
	if err != nil || !v.opts.StripResponse || data == nil {
		return errs, resp, err
	}

	encoded, err := encodeJSON(body)
	if err != nil {
		return nil, resp, err
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: encoded}
	out.Header.Del("Content-Length")
	return errs, out, nil
}

// encodeJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder adds.
func encodeJSON(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// validateResponseHeaders checks resp's headers against the declared
// response headers. Content-Type is never checked. With
// StripResponseHeaders, undeclared headers are removed from the returned
// response.
func (v *Validator) validateResponseHeaders(resp *Response, op *openapi.Operation) ([]ValidationError, *Response, error) {
	def := op.Response(resp.StatusCode)
	if def == nil {
		return nil, resp, nil
	}
	declared := make(map[string]*openapi.Header, len(def.Headers))
	for name, h := range def.Headers {
		declared[http.CanonicalHeaderKey(name)] = h
	}

	if v.opts.StripResponseHeaders {
		header := resp.Header.Clone()
		for name := range header {
			canonical := http.CanonicalHeaderKey(name)
			if canonical == "Content-Type" {
				continue
			}
			if _, ok := declared[canonical]; !ok {
				header.Del(name)
			}
		}
		resp = &Response{StatusCode: resp.StatusCode, Header: header, Body: resp.Body}
	}
	if len(declared) == 0 {
		return nil, resp, nil
	}

	props := make([]Property, 0, len(declared))
	for _, name := range sortedKeys(declared) {
		if strings.EqualFold(name, "Content-Type") {
			continue
		}
		h := declared[name]
		values := resp.Header.Values(name)
		var val any
		if len(values) > 0 {
			val = values[0]
		}
		props = append(props, NewProperty(h.Name, LocationHeader, h.Required, h.Schema, val, len(values) > 0))
	}
	errs, err := v.validateProperties(props)
	return errs, resp, err
}
