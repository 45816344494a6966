package openapi

import (
	"fmt"
	"mime"
	"sort"
	"strconv"
	"strings"
)

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// Operation is one method+path pair of the document.
type Operation struct {
	Method      string
	Path        string
	ID          string
	Parameters  []*Parameter
	RequestBody *RequestBody
	// Responses is keyed by the status code as written in the document
	// ("200", "2XX", "default").
	Responses map[string]*Response
}

// Parameter is a declared path, query, header, or cookie parameter with
// style and explode defaults already applied.
type Parameter struct {
	Name     string
	In       string
	Required bool
	Style    string
	Explode  bool
	Schema   map[string]any
}

// RequestBody describes the accepted request payloads.
type RequestBody struct {
	Required bool
	Content  map[string]*MediaType
}

// MediaType is one entry of a content map.
type MediaType struct {
	Schema   map[string]any
	Encoding map[string]*Encoding

	example    any
	hasExample bool
	examples   map[string]any
}

// Encoding holds per-property serialization for form bodies.
type Encoding struct {
	ContentType string
}

// Response is one declared response of an operation.
type Response struct {
	StatusCode string
	Content    map[string]*MediaType
	Headers    map[string]*Header
}

// Header is a declared response header.
type Header struct {
	Name     string
	Required bool
	Schema   map[string]any
}

func buildOperations(template string, item map[string]any) map[string]*Operation {
	shared := parseParameters(item["parameters"])
	ops := make(map[string]*Operation)
	for _, method := range httpMethods {
		raw, ok := item[strings.ToLower(method)].(map[string]any)
		if !ok {
			continue
		}
		op := &Operation{
			Method:     method,
			Path:       template,
			Parameters: mergeParameters(shared, parseParameters(raw["parameters"])),
			Responses:  make(map[string]*Response),
		}
		op.ID, _ = raw["operationId"].(string)
		if rb, ok := raw["requestBody"].(map[string]any); ok {
			op.RequestBody = &RequestBody{Content: parseContent(rb["content"])}
			op.RequestBody.Required, _ = rb["required"].(bool)
		}
		if responses, ok := raw["responses"].(map[string]any); ok {
			for code, r := range responses {
				if rm, ok := r.(map[string]any); ok {
					op.Responses[code] = parseResponse(code, rm)
				}
			}
		}
		ops[method] = op
	}
	return ops
}

func parseParameters(raw any) []*Parameter {
	list, _ := raw.([]any)
	params := make([]*Parameter, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		p := &Parameter{}
		p.Name, _ = m["name"].(string)
		p.In, _ = m["in"].(string)
		if p.Name == "" || p.In == "" {
			continue
		}
		p.Required, _ = m["required"].(bool)
		if p.In == InPath {
			p.Required = true
		}
		p.Schema, _ = m["schema"].(map[string]any)
		if p.Schema == nil {
			// content-encoded parameters carry their schema in a single media type
			for _, mt := range parseContent(m["content"]) {
				p.Schema = mt.Schema
				break
			}
		}
		p.Style, _ = m["style"].(string)
		if p.Style == "" {
			p.Style = defaultStyle(p.In)
		}
		if explode, ok := m["explode"].(bool); ok {
			p.Explode = explode
		} else {
			p.Explode = p.Style == "form"
		}
		params = append(params, p)
	}
	return params
}

func defaultStyle(in string) string {
	switch in {
	case InQuery, InCookie:
		return "form"
	default:
		return "simple"
	}
}

// mergeParameters overlays operation parameters on path-item parameters.
// An operation parameter with the same name and location replaces the
// shared one in place; new ones are appended.
func mergeParameters(shared, own []*Parameter) []*Parameter {
	out := make([]*Parameter, 0, len(shared)+len(own))
	out = append(out, shared...)
	for _, p := range own {
		replaced := false
		for i, existing := range out {
			if existing.In == p.In && existing.Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

func parseContent(raw any) map[string]*MediaType {
	content, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]*MediaType, len(content))
	for name, entry := range content {
		m, _ := entry.(map[string]any)
		mt := &MediaType{}
		mt.Schema, _ = m["schema"].(map[string]any)
		mt.example, mt.hasExample = m["example"]
		mt.examples, _ = m["examples"].(map[string]any)
		if enc, ok := m["encoding"].(map[string]any); ok {
			mt.Encoding = make(map[string]*Encoding, len(enc))
			for prop, e := range enc {
				em, _ := e.(map[string]any)
				ct, _ := em["contentType"].(string)
				mt.Encoding[prop] = &Encoding{ContentType: ct}
			}
		}
		out[strings.ToLower(name)] = mt
	}
	return out
}

func parseResponse(code string, m map[string]any) *Response {
	r := &Response{StatusCode: code, Content: parseContent(m["content"])}
	if headers, ok := m["headers"].(map[string]any); ok {
		r.Headers = make(map[string]*Header, len(headers))
		for name, h := range headers {
			hm, _ := h.(map[string]any)
			header := &Header{Name: name}
			header.Required, _ = hm["required"].(bool)
			header.Schema, _ = hm["schema"].(map[string]any)
			r.Headers[name] = header
		}
	}
	return r
}

// Response returns the response declared for status: an exact code, then
// the range ("2XX"), then "default". It returns nil when none applies.
func (op *Operation) Response(status int) *Response {
	if r, ok := op.Responses[strconv.Itoa(status)]; ok {
		return r
	}
	class := fmt.Sprintf("%dXX", status/100)
	if r, ok := op.Responses[class]; ok {
		return r
	}
	if r, ok := op.Responses[strings.ToLower(class)]; ok {
		return r
	}
	return op.Responses["default"]
}

// ExampleResponse picks the response used to synthesize a stub body: the
// lowest 2xx code, then "default", then the lowest numeric code. The
// returned status is 200 for "default".
func (op *Operation) ExampleResponse() (*Response, int) {
	var codes []int
	for code := range op.Responses {
		if n, err := strconv.Atoi(code); err == nil {
			codes = append(codes, n)
		}
	}
	sort.Ints(codes)
	for _, n := range codes {
		if n >= 200 && n < 300 {
			return op.Responses[strconv.Itoa(n)], n
		}
	}
	if r, ok := op.Responses["default"]; ok {
		return r, 200
	}
	if len(codes) > 0 {
		return op.Responses[strconv.Itoa(codes[0])], codes[0]
	}
	return nil, 0
}

// ParametersIn returns the parameters declared for a location.
func (op *Operation) ParametersIn(in string) []*Parameter {
	var out []*Parameter
	for _, p := range op.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// MediaType returns the content entry for mediaType, trying an exact
// match first and then wildcard entries such as "image/*" or "*/*".
func (rb *RequestBody) MediaType(mediaType string) *MediaType {
	if rb == nil {
		return nil
	}
	return lookupContent(rb.Content, mediaType)
}

// MediaType returns the content entry for mediaType, like
// RequestBody.MediaType.
func (r *Response) MediaType(mediaType string) *MediaType {
	if r == nil {
		return nil
	}
	return lookupContent(r.Content, mediaType)
}

// DefaultMediaType is the media type assumed when a response carries no
// usable Content-Type: application/json if declared, then any JSON media
// type, then the lexically first one.
func (r *Response) DefaultMediaType() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	if _, ok := r.Content["application/json"]; ok {
		return "application/json"
	}
	names := make([]string, 0, len(r.Content))
	for name := range r.Content {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if IsJSON(name) {
			return name
		}
	}
	return names[0]
}

func lookupContent(content map[string]*MediaType, mediaType string) *MediaType {
	if len(content) == 0 {
		return nil
	}
	mediaType = strings.ToLower(mediaType)
	if mt, ok := content[mediaType]; ok {
		return mt
	}
	patterns := make([]string, 0, len(content))
	for pattern := range content {
		patterns = append(patterns, pattern)
	}
	// "text/*" before "*/*"
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	for _, pattern := range patterns {
		if MatchMediaType(pattern, mediaType) {
			return content[pattern]
		}
	}
	return nil
}

// MatchMediaType reports whether mediaType satisfies pattern, which may be
// a concrete type, "type/*", or "*/*".
func MatchMediaType(pattern, mediaType string) bool {
	if pattern == "*/*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(mediaType, prefix+"/")
	}
	return pattern == mediaType
}

// ParseMediaType extracts the lower-cased media type from a Content-Type
// header value, dropping parameters and any further listed types.
func ParseMediaType(header string) string {
	if header == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(header); err == nil {
		return mt
	}
	first := header
	if i := strings.IndexAny(first, ";,"); i >= 0 {
		first = first[:i]
	}
	return strings.ToLower(strings.TrimSpace(first))
}

// IsJSON reports whether mediaType carries a JSON document.
func IsJSON(mediaType string) bool {
	return mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json") ||
		strings.HasSuffix(mediaType, "/json")
}

// IsForm reports whether mediaType is a form submission.
func IsForm(mediaType string) bool {
	return mediaType == "multipart/form-data" || mediaType == "application/x-www-form-urlencoded"
}

// Example returns the example payload declared for the media type. It
// prefers "example", then the lexically first entry of "examples", then the
// schema's own example, then an object assembled from property examples.
func (mt *MediaType) Example() (any, bool) {
	if mt == nil {
		return nil, false
	}
	if mt.hasExample {
		return mt.example, true
	}
	if len(mt.examples) > 0 {
		names := make([]string, 0, len(mt.examples))
		for name := range mt.examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ex, ok := mt.examples[name].(map[string]any); ok {
				if v, ok := ex["value"]; ok {
					return v, true
				}
			}
		}
	}
	return schemaExample(mt.Schema)
}

func schemaExample(schema map[string]any) (any, bool) {
	if schema == nil {
		return nil, false
	}
	if v, ok := schema["example"]; ok {
		return v, true
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any)
	for name, p := range props {
		ps, _ := p.(map[string]any)
		if v, ok := schemaExample(ps); ok {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// ContentTypes returns the comma-separated list in ContentType.
func (e *Encoding) ContentTypes() []string {
	if e == nil || e.ContentType == "" {
		return nil
	}
	var out []string
	for _, ct := range strings.Split(e.ContentType, ",") {
		if ct = strings.ToLower(strings.TrimSpace(ct)); ct != "" {
			out = append(out, ct)
		}
	}
	return out
}

// Allows reports whether an uploaded part of mediaType satisfies the
// encoding. An encoding without content types accepts anything.
func (e *Encoding) Allows(mediaType string) bool {
	types := e.ContentTypes()
	if len(types) == 0 {
		return true
	}
	mediaType = strings.ToLower(mediaType)
	for _, ct := range types {
		if MatchMediaType(ct, mediaType) {
			return true
		}
	}
	return false
}
