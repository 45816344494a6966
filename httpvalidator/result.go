package httpvalidator

import (
	"encoding/json"
	"net/http"
	"slices"
)

// Locations reported in ValidationError.Location.
const (
	LocationPath     = "path"
	LocationQuery    = "query"
	LocationHeader   = "header"
	LocationCookie   = "cookie"
	LocationFormData = "form-data"
	LocationBody     = "body"
)

// Error codes produced outside the schema engine. Engine failures are
// reported as "error_" followed by the failing keyword.
const (
	CodeRequired    = "error_required"
	CodeAdditional  = "error_additional"
	CodeType        = "error_type"
	CodeContentType = "error_content_type"
	CodeJSON        = "error_json"
	CodeForm        = "error_form"
	CodeServer      = "error_server"
	CodeMaxSize     = "error_max_size"
)

// Names used for whole-body failures.
const (
	NameRequestBody  = "requestBody"
	NameResponseBody = "responseBody"
	NameServer       = "server"
)

// ValidationError is one failed check. Records are values; they never
// abort processing.
type ValidationError struct {
	// Name is the dotted path of the offending value. An empty name is the
	// document root.
	Name string
	// Code is "error_" plus the failing keyword, e.g. "error_type".
	Code string
	// Location is where the value came from (query, header, body, ...).
	Location string
	// Value is the offending value. It is meaningful only when HasValue is
	// set; error_required records never carry one.
	Value    any
	HasValue bool
	// Args holds keyword details such as "expected", "used", "min" or
	// "format". They are flattened into the JSON record.
	Args map[string]any
	// Message is the engine's human-readable description, if any.
	Message string

	// path locates the value relative to the validated instance.
	path []string
	// missing marks error_required records whose last path token is the
	// absent property.
	missing bool
}

// Arg returns the named keyword argument.
func (e ValidationError) Arg(name string) any {
	return e.Args[name]
}

// MarshalJSON flattens Args into the record:
//
//	{"name":"foo","code":"error_enum","location":"query","value":"ccc","expected":["aaa","bbb"]}
func (e ValidationError) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Args)+5)
	for k, v := range e.Args {
		out[k] = v
	}
	out["name"] = e.Name
	out["code"] = e.Code
	if e.Location != "" {
		out["location"] = e.Location
	}
	if e.HasValue {
		out["value"] = e.Value
	}
	if e.Message != "" {
		out["message"] = e.Message
	}
	return json.Marshal(out)
}

// expects reports whether the "expected" argument names typ.
func (e ValidationError) expects(typ string) bool {
	switch want := e.Args["expected"].(type) {
	case string:
		return want == typ
	case []string:
		return slices.Contains(want, typ)
	case []any:
		return slices.Contains(want, any(typ))
	}
	return false
}

// Response is a buffered HTTP response produced by Process.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Write sends r to w.
func (r *Response) Write(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vals := range r.Header {
		dst[k] = slices.Clone(vals)
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// errorBody is the structured failure payload.
type errorBody struct {
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// ErrorResponse builds the default failure response:
// {"message": ..., "errors": [...]} as application/json;charset=utf-8.
func ErrorResponse(status int, message string, errs []ValidationError) *Response {
	body, err := json.Marshal(errorBody{Message: message, Errors: errs})
	if err != nil {
		body, _ = json.Marshal(errorBody{Message: message})
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json;charset=utf-8")
	return &Response{StatusCode: status, Header: h, Body: body}
}
